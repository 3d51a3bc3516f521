// Package rpcdemo is a reference rpc.LocalEndpoint used by the CLI's
// "serve" command and by transport/daemon integration tests. It answers
// three methods: "ping" (a notification logged and otherwise ignored),
// "echo" (a request whose params are reflected back as the result), and
// "slow" (a request that sleeps before replying, for exercising
// WorkerPool concurrency and cancellation).
package rpcdemo

import (
	"encoding/json"
	"time"

	"github.com/firi/rpcendpoint/internal/rpc"
)

// EchoParams is both the params and result shape for the "echo" method.
type EchoParams struct {
	Text string `json:"text"`
}

// SlowParams configures the "slow" method's artificial delay.
type SlowParams struct {
	DelayMillis int `json:"delayMillis"`
}

// PingParams is the payload of the "ping" notification.
type PingParams struct {
	Text string `json:"text"`
}

// Catalog builds the MessageCatalog covering every method Endpoint
// understands, for wiring into rpc.Config.Catalog alongside an Endpoint.
func Catalog() *rpc.Catalog {
	return rpc.NewCatalog().
		RegisterRequest("echo", rpc.MethodSpec{New: func() rpc.TypedMessage { return &EchoParams{} }}).
		RegisterRequest("slow", rpc.MethodSpec{New: func() rpc.TypedMessage { return &SlowParams{} }}).
		RegisterNotification("ping", rpc.MethodSpec{New: func() rpc.TypedMessage { return &PingParams{} }}).
		RegisterResponse("echo", rpc.MethodSpec{New: func() rpc.TypedMessage { return &EchoParams{} }}).
		RegisterResponse("slow", rpc.MethodSpec{New: func() rpc.TypedMessage { return &json.RawMessage{} }}).
		RegisterFallback(func() rpc.TypedMessage { return &json.RawMessage{} })
}

// Endpoint is the reference LocalEndpoint. It holds a reference to the
// Dispatcher it's attached to so it can call SendResponse; Dispatcher and
// Endpoint have a circular dependency resolved by setting Dispatcher
// after both are constructed (see New).
type Endpoint struct {
	dispatcher *rpc.Dispatcher
	log        rpc.Log
}

// New builds an Endpoint. Call SetDispatcher once the owning Dispatcher
// exists, before Dispatcher.Start is called.
func New(log rpc.Log) *Endpoint {
	if log == nil {
		log = discardLog{}
	}
	return &Endpoint{log: log}
}

// SetDispatcher wires the Dispatcher this Endpoint sends responses
// through. It must be called before any request reaches OnRequest.
func (e *Endpoint) SetDispatcher(d *rpc.Dispatcher) {
	e.dispatcher = d
}

func (e *Endpoint) OnRequest(req rpc.Request, msg rpc.TypedMessage) {
	switch params := msg.(type) {
	case *EchoParams:
		result, _ := json.Marshal(params)
		_ = e.dispatcher.SendResponse(rpc.Response{ID: req.ID, Result: result})
	case *SlowParams:
		delay := time.Duration(params.DelayMillis) * time.Millisecond
		time.Sleep(delay)
		result, _ := json.Marshal(map[string]string{"status": "done"})
		_ = e.dispatcher.SendResponse(rpc.Response{ID: req.ID, Result: result})
	default:
		e.log.Log(rpc.LogWarning, "rpcdemo: unhandled request method "+req.Method)
		errResult := &rpc.RPCError{Code: rpc.ErrCodeMethodNotFound, Message: "method not implemented by rpcdemo"}
		_ = e.dispatcher.SendResponse(rpc.Response{ID: req.ID, Error: errResult})
	}
}

func (e *Endpoint) OnResponse(method string, resp rpc.Response, msg rpc.TypedMessage) {
	e.log.Log(rpc.LogInfo, "rpcdemo: received unsolicited response for "+method)
}

func (e *Endpoint) Notify(n rpc.Notification, msg rpc.TypedMessage) {
	if ping, ok := msg.(*PingParams); ok {
		e.log.Log(rpc.LogInfo, "rpcdemo: ping "+ping.Text)
	}
}

var _ rpc.LocalEndpoint = (*Endpoint)(nil)

type discardLog struct{}

func (discardLog) Log(rpc.LogLevel, string) {}
