package rpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func rateLimiterForTest(burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(0.0001), burst)
}

func TestWorkerPoolRunsSubmittedJobs(t *testing.T) {
	p := NewWorkerPool(4)
	defer p.Close()

	var n int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			atomic.AddInt64(&n, 1)
			wg.Done()
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()
	assertEqual(t, atomic.LoadInt64(&n), int64(50), "jobs executed")
}

func TestWorkerPoolSubmitAfterCloseErrors(t *testing.T) {
	p := NewWorkerPool(2)
	p.Close()

	err := p.Submit(context.Background(), func() {})
	if !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected errPoolClosed, got %v", err)
	}
}

func TestWorkerPoolCloseIsIdempotent(t *testing.T) {
	p := NewWorkerPool(1)
	p.Close()
	p.Close() // must not panic on double-close
}

func TestWorkerPoolRateLimitBackpressure(t *testing.T) {
	// A limiter with a tiny burst and a context that expires quickly
	// should make Submit return the context's error rather than block
	// forever.
	p := NewWorkerPool(1, WithRateLimit(rateLimiterForTest(1)))
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	// Drain the single burst token synchronously first.
	if err := p.Submit(context.Background(), func() {}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// The limiter's next token isn't due for a long while (rate near
	// zero), so this submit should be cancelled by the context.
	err := p.Submit(ctx, func() {})
	if err == nil {
		t.Fatal("expected context deadline to cut off the rate-limited submit")
	}
}
