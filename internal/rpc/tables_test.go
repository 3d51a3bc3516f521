package rpc

import (
	"testing"
)

func TestOutstandingInsertTakeRoundTrip(t *testing.T) {
	o := newOutstandingRequests()
	id := NewNumberID(1)

	if err := o.insert(id, "foo/bar", nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	assertEqual(t, o.len(), 1, "len after insert")

	entry, ok := o.take(id)
	if !ok {
		t.Fatal("expected entry to be found")
	}
	assertEqual(t, entry.method, "foo/bar", "method")
	assertEqual(t, o.len(), 0, "len after take")

	if _, ok := o.take(id); ok {
		t.Fatal("take should not find an already-taken id")
	}
}

func TestOutstandingInsertDuplicateErrors(t *testing.T) {
	o := newOutstandingRequests()
	id := NewNumberID(5)
	if err := o.insert(id, "a", nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := o.insert(id, "b", nil); err == nil {
		t.Fatal("expected error inserting a duplicate id")
	}
}

func TestOutstandingClearReturnsAllRemoved(t *testing.T) {
	o := newOutstandingRequests()
	for i := int64(0); i < 3; i++ {
		if err := o.insert(NewNumberID(i), "m", nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	removed := o.clear()
	assertEqual(t, len(removed), 3, "removed count")
	assertEqual(t, o.len(), 0, "len after clear")
}

func TestOutstandingPeekDoesNotRemove(t *testing.T) {
	o := newOutstandingRequests()
	id := NewStringID("abc")
	_ = o.insert(id, "m", nil)

	if _, ok := o.peek(id); !ok {
		t.Fatal("expected peek to find the entry")
	}
	assertEqual(t, o.len(), 1, "len after peek")
}

func TestReceivedInsertForgetIsCommitPoint(t *testing.T) {
	r := newReceivedRequests()
	id := NewNumberID(1)
	r.insert(id)
	assertEqual(t, r.len(), 1, "len after insert")

	if present := r.forget(id); !present {
		t.Fatal("forget should report the entry was present before dispatch")
	}
	assertEqual(t, r.len(), 0, "len after forget")

	// Once forgotten (dispatched), a cancellation observes nothing: it is
	// a no-op at this layer, matching the commit-point invariant.
	if preempted := r.cancel(id); preempted {
		t.Fatal("cancel after forget should not report a preemption")
	}
}

func TestReceivedCancelBeforeDispatchPreempts(t *testing.T) {
	r := newReceivedRequests()
	id := NewNumberID(2)
	r.insert(id)

	if preempted := r.cancel(id); !preempted {
		t.Fatal("cancel before dispatch should report a preemption")
	}
	assertEqual(t, r.len(), 0, "len after cancel")

	// Forgetting an already-cancelled id is harmless, and reports the
	// entry was already gone.
	if present := r.forget(id); present {
		t.Fatal("forget should report the entry was already gone after cancellation")
	}
}

func TestReceivedClearWipesEverything(t *testing.T) {
	r := newReceivedRequests()
	r.insert(NewNumberID(1))
	r.insert(NewNumberID(2))
	r.clear()
	assertEqual(t, r.len(), 0, "len after clear")
}

func TestIDAllocatorMonotonic(t *testing.T) {
	var a idAllocator
	seen := make(map[int64]bool)
	prev := int64(0)
	for i := 0; i < 100; i++ {
		n := a.allocate()
		if n <= prev {
			t.Fatalf("allocator not strictly increasing: prev=%d next=%d", prev, n)
		}
		if seen[n] {
			t.Fatalf("allocator produced duplicate id %d", n)
		}
		seen[n] = true
		prev = n
	}
}

func TestConditionNotifyThenWait(t *testing.T) {
	c := newCondition[int]()
	c.notify(42)
	v, ok := c.wait(0)
	if !ok {
		t.Fatal("expected wait to succeed")
	}
	assertEqual(t, v, 42, "value")
}

func TestConditionSecondNotifyIsNoOp(t *testing.T) {
	c := newCondition[int]()
	c.notify(1)
	c.notify(2)
	v, ok := c.wait(0)
	if !ok {
		t.Fatal("expected wait to succeed")
	}
	assertEqual(t, v, 1, "value should be from the first notify only")
}

func TestConditionWaitTimesOutWithoutNotify(t *testing.T) {
	c := newCondition[int]()
	_, ok := c.wait(10_000_000) // 10ms in nanoseconds
	if ok {
		t.Fatal("expected wait to time out")
	}
}
