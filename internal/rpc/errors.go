package rpc

import "errors"

// Transport-level errors, distinct from JSON-RPC protocol errors carried
// inside a Response.
var (
	// ErrConnectionClosed is returned by send operations once the
	// Dispatcher has stopped or the output stream has reported itself
	// dead.
	ErrConnectionClosed = errors.New("rpc: connection closed")

	// ErrTimeout is returned by WaitResponse when no response arrives
	// within the configured timeout.
	ErrTimeout = errors.New("rpc: request timeout")

	// errPoolClosed is returned internally when a job is submitted to a
	// WorkerPool that has already been closed.
	errPoolClosed = errors.New("rpc: worker pool closed")
)
