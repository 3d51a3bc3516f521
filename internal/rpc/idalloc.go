package rpc

import "sync/atomic"

// idAllocator hands out strictly increasing request IDs for the lifetime
// of one Dispatcher. It is lock-free: callers never block behind it while
// holding a table mutex.
type idAllocator struct {
	next atomic.Int64
}

// allocate returns the next monotonic ID, starting at 1.
func (a *idAllocator) allocate() int64 {
	return a.next.Add(1)
}
