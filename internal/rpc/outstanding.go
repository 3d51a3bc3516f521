package rpc

import (
	"fmt"
	"sync"
)

// completionFunc is a one-shot callback invoked with a matching response.
// It returns whether the LocalEndpoint should also be informed: false
// means the callback fully consumed the response (the typical case for
// WaitResponse), true means the Dispatcher should additionally call
// LocalEndpoint.OnResponse.
type completionFunc func(resp Response, msg TypedMessage) bool

// outstandingEntry is what OutstandingRequests stores for a request we
// sent and are still waiting on.
type outstandingEntry struct {
	method     string
	completion completionFunc
}

// outstandingRequests is the table of requests we sent that are awaiting
// a response. It is serialized by a single mutex distinct from the one
// guarding ReceivedRequests, so the two tables never contend with each
// other.
type outstandingRequests struct {
	mu      sync.Mutex
	entries map[RequestID]*outstandingEntry
}

func newOutstandingRequests() *outstandingRequests {
	return &outstandingRequests{entries: make(map[RequestID]*outstandingEntry)}
}

// insert records a new in-flight outbound request. It is an error to
// insert an ID that is already live; the allocator guarantees this never
// happens in practice.
func (o *outstandingRequests) insert(id RequestID, method string, completion completionFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.entries[id]; exists {
		return fmt.Errorf("rpc: request id %s already outstanding", id)
	}
	o.entries[id] = &outstandingEntry{method: method, completion: completion}
	return nil
}

// take atomically removes and returns the entry for id, if any.
func (o *outstandingRequests) take(id RequestID) (*outstandingEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	if ok {
		delete(o.entries, id)
	}
	return e, ok
}

// peek returns the entry for id without removing it.
func (o *outstandingRequests) peek(id RequestID) (*outstandingEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[id]
	return e, ok
}

// clear wipes every entry, used on Dispatcher shutdown. It returns the
// removed entries so the caller can surface their absence to waiters
// (a cleared completion never fires; WaitResponse callers simply time
// out or see their timer stop).
func (o *outstandingRequests) clear() []*outstandingEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	removed := make([]*outstandingEntry, 0, len(o.entries))
	for _, e := range o.entries {
		removed = append(removed, e)
	}
	o.entries = make(map[RequestID]*outstandingEntry)
	return removed
}

// len reports how many requests are currently outstanding; used by
// metrics and tests.
func (o *outstandingRequests) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
