package rpc

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// job is an opaque unit of dispatch work: parse one decoded payload,
// classify it, and route it. Jobs are independent; the pool promises no
// ordering between them.
type job func()

// WorkerPool is a fixed-size pool of goroutines draining a job queue. It
// decouples the producer goroutine (blocked in FrameReader) from JSON
// parsing and handler dispatch, so a slow handler cannot stall framing.
//
// The queue holds up to 256 jobs; once it is full, Submit blocks until a
// worker takes one. A caller that wants further backpressure supplies a
// rate.Limiter via WithRateLimit, which the pool honors when accepting
// new jobs.
type WorkerPool struct {
	jobs    chan job
	limiter *rate.Limiter
	wg      sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWorkerPool starts size workers. size is clamped to at least 1.
func NewWorkerPool(size int, opts ...WorkerPoolOption) *WorkerPool {
	if size < 1 {
		size = 1
	}
	p := &WorkerPool{
		jobs:   make(chan job, 256),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// WorkerPoolOption configures a WorkerPool at construction time.
type WorkerPoolOption func(*WorkerPool)

// WithRateLimit caps how fast new jobs are admitted to the queue,
// providing optional backpressure on top of the 256-job queue bound.
func WithRateLimit(limiter *rate.Limiter) WorkerPoolOption {
	return func(p *WorkerPool) { p.limiter = limiter }
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.closed:
			return
		case j := <-p.jobs:
			j()
		}
	}
}

// Submit enqueues a job for execution by some worker. If a rate limiter
// is configured, Submit blocks (bounded by ctx) until the limiter admits
// the job; it then returns as soon as the job is queued, blocking while
// the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, j job) error {
	select {
	case <-p.closed:
		return errPoolClosed
	default:
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	select {
	case p.jobs <- j:
		return nil
	case <-p.closed:
		return errPoolClosed
	}
}

// Close stops accepting new jobs and waits for the workers to exit.
// In-flight jobs run to completion; queued-but-unstarted jobs may be
// discarded. It is idempotent.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}
