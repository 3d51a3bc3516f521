package rpc

import "io"

// LogLevel is the severity of a diagnostic reported through Log.
type LogLevel int

const (
	LogInfo LogLevel = iota
	LogWarning
	LogSevere
)

func (l LogLevel) String() string {
	switch l {
	case LogWarning:
		return "warning"
	case LogSevere:
		return "severe"
	default:
		return "info"
	}
}

// Log is the narrow logging collaborator the Dispatcher reports
// diagnostics through. It never blocks dispatch on I/O of its own.
type Log interface {
	Log(level LogLevel, text string)
}

// nullLog discards everything; used when a caller does not supply a Log.
type nullLog struct{}

func (nullLog) Log(LogLevel, string) {}

// TypedMessage is whatever a MessageCatalog decodes a request, response,
// or notification payload into. The Dispatcher never inspects it beyond
// passing it along to the LocalEndpoint or a completion callback.
type TypedMessage any

// MessageCatalog is the JSON-to-typed-message reflection layer. It is
// intentionally kept out of the Dispatcher's concerns: the Dispatcher
// only ever asks it to turn a raw params/result blob, plus a method
// name, into a typed value.
type MessageCatalog interface {
	// ParseRequest decodes a request's params for the given method. A nil
	// return (with a nil error) means the method is unknown.
	ParseRequest(method string, params []byte) (TypedMessage, error)

	// ParseNotification decodes a notification's params for the given
	// method. A nil return (with a nil error) means the method is
	// unknown.
	ParseNotification(method string, params []byte) (TypedMessage, error)

	// ParseResponse decodes a response's result for the method under
	// which the matching request was originally sent.
	ParseResponse(method string, result []byte, rpcErr *RPCError) (TypedMessage, error)

	// ResolveResponse is used only for orphan responses: the id did not
	// match any outstanding request, so the catalog must infer the
	// method from the payload shape alone. ok is false when no type
	// could be inferred.
	ResolveResponse(result []byte, rpcErr *RPCError) (method string, msg TypedMessage, ok bool)
}

// LocalEndpoint is the local application the Dispatcher hands decoded
// traffic to. Implementations must be safe for concurrent use: the
// WorkerPool may invoke onRequest/onResponse/Notify from multiple
// goroutines at once, and must not block for long or it stalls the
// worker that is running it (and, once every worker is stalled and the
// job queue has filled, the producer goroutine too).
type LocalEndpoint interface {
	// OnRequest is invoked once the Dispatcher has committed to routing
	// a received request (see ReceivedRequests). The handler is
	// responsible for eventually calling Dispatcher.SendResponse with a
	// matching ID.
	OnRequest(req Request, msg TypedMessage)

	// OnResponse is invoked either for an orphan response (no matching
	// OutstandingRequests entry) or when a completion callback passed to
	// SendRequest chose to also surface the response locally.
	OnResponse(method string, resp Response, msg TypedMessage)

	// Notify is invoked for every notification that isn't the reserved
	// cancellation method.
	Notify(n Notification, msg TypedMessage)
}

// InputStream is the read half of a duplex transport, plus a liveness
// check so the Dispatcher can avoid attempting reads on a stream that has
// already reported itself dead.
type InputStream interface {
	io.Reader
	Alive() bool
}

// OutputStream is the write half of a duplex transport.
type OutputStream interface {
	io.Writer
	Alive() bool
}
