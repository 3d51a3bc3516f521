package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config configures a Dispatcher at construction time. Catalog, Local,
// and Log are the injected collaborators; MaxWorkers, Metrics, and
// StopGrace are tuning knobs.
type Config struct {
	Catalog MessageCatalog
	Local   LocalEndpoint
	Log     Log

	// MaxWorkers sizes the WorkerPool. Defaults to 4 if zero or negative.
	MaxWorkers int

	// Metrics, if non-nil, receives dispatch counters and table gauges.
	Metrics Metrics

	// StopGrace bounds how long Stop waits for the producer goroutine to
	// notice shutdown and exit before giving up on the join. Defaults to
	// 2 seconds.
	StopGrace time.Duration

	// PoolOptions are passed through to NewWorkerPool, e.g. WithRateLimit.
	PoolOptions []WorkerPoolOption
}

// Dispatcher is the remote endpoint: it owns the WorkerPool, the ID
// allocator, and both request tables; it runs the producer goroutine and
// routes decoded traffic to the LocalEndpoint or to whichever completion
// a caller registered with SendRequest/WaitResponse.
//
// Streams are shared references injected at Start; the producer goroutine
// holds a non-owning reference to the Dispatcher and exits once running
// is observed false.
type Dispatcher struct {
	catalog MessageCatalog
	local   LocalEndpoint
	log     Log
	metrics Metrics

	pool        *WorkerPool
	outstanding *outstandingRequests
	received    *receivedRequests
	ids         idAllocator

	stopGrace time.Duration

	// sendMu serializes FrameWriter output. The two request tables each
	// carry their own internal mutex instead of sharing this one; where
	// both are held, sendMu is taken first.
	sendMu sync.Mutex

	running atomic.Bool
	writer  *FrameWriter
	input   InputStream
	output  OutputStream

	group        *errgroup.Group
	groupCtx     context.Context
	cancelGroup  context.CancelFunc
	producerDone chan struct{}
}

// NewDispatcher builds a Dispatcher from cfg. Catalog, Local, and Log must
// be non-nil except Log, which defaults to a discarding no-op logger.
func NewDispatcher(cfg Config) *Dispatcher {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	stopGrace := cfg.StopGrace
	if stopGrace <= 0 {
		stopGrace = 2 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = nullLog{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Dispatcher{
		catalog:     cfg.Catalog,
		local:       cfg.Local,
		log:         log,
		metrics:     metrics,
		pool:        NewWorkerPool(maxWorkers, cfg.PoolOptions...),
		outstanding: newOutstandingRequests(),
		received:    newReceivedRequests(),
		stopGrace:   stopGrace,
	}
}

// Start binds the duplex stream and spawns the producer goroutine that
// runs FrameReader and submits each payload to the WorkerPool. It is an
// error to call Start twice without an intervening Stop.
func (d *Dispatcher) Start(input InputStream, output OutputStream) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("rpc: dispatcher already started")
	}

	d.input = input
	d.output = output
	d.writer = NewFrameWriter(output)

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)
	d.group = group
	d.groupCtx = groupCtx
	d.cancelGroup = cancel
	d.producerDone = make(chan struct{})

	group.Go(func() error {
		defer close(d.producerDone)
		d.runProducer(input)
		return nil
	})

	return nil
}

// runProducer is the producer goroutine: it loops reading framed
// payloads and submitting each to the WorkerPool as an independent job.
// It blocks on stream I/O, and in Submit while the WorkerPool's job queue
// is full or a configured rate limiter holds the job back.
func (d *Dispatcher) runProducer(input InputStream) {
	reader := NewFrameReader(input)
	for d.running.Load() && input.Alive() {
		payload, err := reader.Next()
		if err != nil {
			if !d.running.Load() {
				// Stop() closed the input stream to unblock us; this
				// read error is expected, not a failure to diagnose.
				return
			}
			if errors.Is(err, ErrFraming) {
				d.log.Log(LogSevere, fmt.Sprintf("framing error, resynchronizing: %v", err))
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			d.log.Log(LogSevere, fmt.Sprintf("input stream read error: %v", err))
			return
		}

		if err := d.pool.Submit(d.groupCtx, func() { d.dispatch(payload) }); err != nil {
			return
		}
	}
}

// Done returns a channel that closes when the producer goroutine exits,
// whether on its own (e.g. the peer closed the connection) or because
// Stop was called. A caller hosting one Dispatcher per connection (see
// internal/daemon) uses this to notice disconnection and clean up.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.producerDone
}

// Stop halts the Dispatcher: it marks running false, closes the input
// transport to unblock FrameReader, joins the producer goroutine with a
// grace period, clears both request tables (dropping pending completions,
// which surfaces to WaitResponse callers as timeouts), and best-effort
// drains the worker pool.
func (d *Dispatcher) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	if closer, ok := d.input.(io.Closer); ok {
		_ = closer.Close()
	}
	// Unblocks any worker-pool submission currently waiting on a rate
	// limiter before we start the grace-period countdown.
	d.cancelGroup()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.stopGrace):
		d.log.Log(LogWarning, "producer goroutine did not exit within grace period")
	}

	d.outstanding.clear()
	d.received.clear()
	d.metrics.OutstandingGauge(0)
	d.metrics.ReceivedGauge(0)

	d.pool.Close()
}

// dispatch is the receive path executed on a worker: parse, validate,
// classify, and route one payload. It never panics the worker: handler
// exceptions are recovered and logged.
func (d *Dispatcher) dispatch(payload string) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Log(LogSevere, fmt.Sprintf("panic while dispatching payload %q: %v", truncate(payload), r))
		}
	}()

	var env wireEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		offset := 0
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			offset = int(syn.Offset)
		}
		trailing := payload
		if offset >= 0 && offset < len(payload) {
			trailing = payload[offset:]
		}
		d.log.Log(LogSevere, fmt.Sprintf("parse error at offset %d: %v; context: %q", offset, err, truncate(trailing)))
		return
	}

	if env.Jsonrpc != jsonrpcVersion {
		d.log.Log(LogSevere, fmt.Sprintf("bad or missing jsonrpc version; content: %q", truncate(payload)))
		return
	}

	kind := classify(&env)
	d.metrics.Dispatched(kind)

	switch kind {
	case KindRequest:
		d.dispatchRequest(env)
	case KindResponse:
		d.dispatchResponse(env)
	case KindNotification:
		d.dispatchNotification(env)
	default:
		d.log.Log(LogWarning, fmt.Sprintf("unknown message shape, discarding: %q", truncate(payload)))
	}
}

func (d *Dispatcher) dispatchRequest(env wireEnvelope) {
	req := Request{ID: *env.ID, Method: env.Method, Params: env.Params}

	msg, err := d.catalog.ParseRequest(req.Method, req.Params)
	if err != nil {
		d.log.Log(LogSevere, fmt.Sprintf("error decoding request %s (%s): %v", req.Method, req.ID, err))
		return
	}
	if msg == nil {
		d.log.Log(LogWarning, fmt.Sprintf("unknown request method %q, discarding", req.Method))
		return
	}

	d.received.insert(req.ID)
	d.metrics.ReceivedGauge(d.received.len())
	d.routeRequest(req, msg)
}

func (d *Dispatcher) dispatchResponse(env wireEnvelope) {
	id := *env.ID
	entry, found := d.outstanding.take(id)
	d.metrics.OutstandingGauge(d.outstanding.len())

	if !found {
		method, msg, ok := d.catalog.ResolveResponse(env.Result, env.Error)
		if !ok {
			d.log.Log(LogInfo, fmt.Sprintf("orphan response for unknown id %s could not be resolved", id))
			return
		}
		resp := Response{ID: id, Result: env.Result, Error: env.Error}
		d.routeOrphanResponse(method, resp, msg)
		return
	}

	msg, err := d.catalog.ParseResponse(entry.method, env.Result, env.Error)
	if err != nil {
		d.log.Log(LogSevere, fmt.Sprintf("error decoding response for %s (%s): %v", entry.method, id, err))
		return
	}
	if msg == nil {
		d.log.Log(LogSevere, fmt.Sprintf("unknown response type for method %q, discarding", entry.method))
		return
	}

	resp := Response{ID: id, Result: env.Result, Error: env.Error}
	d.routeMatchedResponse(entry, resp, msg)
}

func (d *Dispatcher) dispatchNotification(env wireEnvelope) {
	if env.Method == MethodCancelRequest {
		var params cancelParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			d.log.Log(LogSevere, fmt.Sprintf("malformed %s params: %v", MethodCancelRequest, err))
			return
		}
		preempted := d.received.cancel(params.ID)
		d.metrics.ReceivedGauge(d.received.len())
		if preempted {
			d.log.Log(LogInfo, fmt.Sprintf("cancelled request %s before dispatch", params.ID))
		}
		return
	}

	msg, err := d.catalog.ParseNotification(env.Method, env.Params)
	if err != nil {
		d.log.Log(LogSevere, fmt.Sprintf("error decoding notification %s: %v", env.Method, err))
		return
	}
	if msg == nil {
		d.log.Log(LogSevere, fmt.Sprintf("unknown notification method %q, discarding", env.Method))
		return
	}

	d.routeNotification(Notification{Method: env.Method, Params: env.Params}, msg)
}

// routeRequest is the request arm of mainLoop: forget the ReceivedRequests
// entry (the dispatch commitment point) then hand off to the local
// endpoint. If running has gone false by the time routing happens, the
// message is dropped silently. If forget reports the entry was already
// gone, a racing $/cancelRequest preempted dispatch, so OnRequest must
// not fire.
func (d *Dispatcher) routeRequest(req Request, msg TypedMessage) {
	if !d.running.Load() {
		return
	}
	present := d.received.forget(req.ID)
	d.metrics.ReceivedGauge(d.received.len())
	if !present {
		d.log.Log(LogInfo, fmt.Sprintf("request %s %s cancelled before dispatch", req.ID, req.Method))
		return
	}
	d.local.OnRequest(req, msg)
}

// routeMatchedResponse is the response arm of mainLoop for a response
// whose id matched an OutstandingRequests entry: invoke the completion,
// and additionally inform the local endpoint unless the completion fully
// consumed the response.
func (d *Dispatcher) routeMatchedResponse(entry *outstandingEntry, resp Response, msg TypedMessage) {
	if !d.running.Load() {
		return
	}
	informLocal := true
	if entry.completion != nil {
		informLocal = entry.completion(resp, msg)
	}
	if informLocal {
		d.local.OnResponse(entry.method, resp, msg)
	}
}

// routeOrphanResponse forwards a response whose id matched nothing in
// OutstandingRequests straight to the local endpoint.
func (d *Dispatcher) routeOrphanResponse(method string, resp Response, msg TypedMessage) {
	if !d.running.Load() {
		return
	}
	d.local.OnResponse(method, resp, msg)
}

// routeNotification is the notification arm of mainLoop.
func (d *Dispatcher) routeNotification(n Notification, msg TypedMessage) {
	if !d.running.Load() {
		return
	}
	d.local.Notify(n, msg)
}

// SendNotification serializes and emits a fire-and-forget message. It is
// a no-op once the Dispatcher has stopped.
func (d *Dispatcher) SendNotification(method string, params any) error {
	if !d.running.Load() {
		d.log.Log(LogInfo, fmt.Sprintf("dropping notification %q sent after stop", method))
		return ErrConnectionClosed
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc: encoding notification params: %w", err)
	}
	body, err := encodeNotification(Notification{Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("rpc: encoding notification: %w", err)
	}
	if err := d.write(body); err != nil {
		d.log.Log(LogInfo, fmt.Sprintf("output unavailable sending notification %s: %v", method, err))
		return err
	}
	return nil
}

// SendResponse serializes and emits a response to a request the local
// endpoint accepted earlier.
func (d *Dispatcher) SendResponse(resp Response) error {
	if !d.running.Load() {
		d.log.Log(LogInfo, fmt.Sprintf("dropping response %s sent after stop", resp.ID))
		return ErrConnectionClosed
	}
	body, err := encodeResponse(resp)
	if err != nil {
		return fmt.Errorf("rpc: encoding response: %w", err)
	}
	if err := d.write(body); err != nil {
		d.log.Log(LogInfo, fmt.Sprintf("output unavailable sending response %s: %v", resp.ID, err))
		return err
	}
	return nil
}

// SendRequest assigns the next monotonic ID, records completion in
// OutstandingRequests, and emits the request. It returns immediately; the
// completion fires later, from whichever worker routes the matching
// response.
func (d *Dispatcher) SendRequest(method string, params any, completion completionFunc) (RequestID, error) {
	if !d.running.Load() {
		d.log.Log(LogInfo, fmt.Sprintf("dropping request %q sent after stop", method))
		return RequestID{}, ErrConnectionClosed
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return RequestID{}, fmt.Errorf("rpc: encoding request params: %w", err)
	}

	id := NewNumberID(d.ids.allocate())
	if err := d.outstanding.insert(id, method, completion); err != nil {
		return id, err
	}
	d.metrics.OutstandingGauge(d.outstanding.len())

	body, err := encodeRequest(Request{ID: id, Method: method, Params: raw})
	if err != nil {
		return id, fmt.Errorf("rpc: encoding request: %w", err)
	}
	if err := d.write(body); err != nil {
		d.log.Log(LogInfo, fmt.Sprintf("output unavailable sending request %s %s: %v", id, method, err))
		return id, err
	}
	return id, nil
}

// waitResult is what the one-shot Condition carries from a SendRequest
// completion back to a blocked WaitResponse caller.
type waitResult struct {
	resp Response
	msg  TypedMessage
}

// WaitResponse sends a request and blocks the caller up to timeout for
// the matching response. On timeout it removes the OutstandingRequests
// entry so a later reply is treated as an orphan response rather than
// leaking memory for the Dispatcher's lifetime (§9 open question 1).
func (d *Dispatcher) WaitResponse(method string, params any, timeout time.Duration) (Response, TypedMessage, error) {
	cond := newCondition[waitResult]()

	id, err := d.SendRequest(method, params, func(resp Response, msg TypedMessage) bool {
		cond.notify(waitResult{resp: resp, msg: msg})
		return false
	})
	if err != nil {
		return Response{}, nil, err
	}

	result, ok := cond.wait(timeout)
	if !ok {
		d.outstanding.take(id)
		d.metrics.OutstandingGauge(d.outstanding.len())
		return Response{}, nil, ErrTimeout
	}
	return result.resp, result.msg, nil
}

func (d *Dispatcher) write(body []byte) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	if !d.output.Alive() {
		return ErrConnectionClosed
	}
	return d.writer.Write(body)
}

// truncate caps a string for inclusion in a log line.
func truncate(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
