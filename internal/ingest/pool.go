// Package ingest provides the bounded worker pool that detector calls run
// on, so a burst of uploads cannot fork an unbounded number of external
// tool processes.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"proctor/internal/config"
)

// ErrBusy reports that the pool queue stayed full past the enqueue timeout.
var ErrBusy = errors.New("ingest: analysis pool saturated")

// ErrClosed reports submission to a closed pool.
var ErrClosed = errors.New("ingest: pool closed")

type task struct {
	run  func()
	done chan struct{}
}

// Pool runs submitted functions on a fixed set of workers behind a bounded
// queue.
type Pool struct {
	tasks          chan task
	enqueueTimeout time.Duration
	workers        int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts a pool sized from configuration.
func NewPool(cfg config.Ingest) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	depth := cfg.QueueDepth
	if depth < 1 {
		depth = 1
	}
	timeout := time.Duration(cfg.EnqueueTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &Pool{
		tasks:          make(chan task, depth),
		enqueueTimeout: timeout,
		workers:        workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.run()
		close(t.done)
	}
}

// Do submits fn and waits for it to finish. A full queue past the enqueue
// timeout returns ErrBusy without running fn. Context cancellation while
// waiting for a slot abandons the submission; once fn is queued it always
// runs to completion.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	// The read lock spans the enqueue so Close cannot close the channel
	// under a pending send.
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}

	t := task{run: fn, done: make(chan struct{})}
	timer := time.NewTimer(p.enqueueTimeout)
	defer timer.Stop()

	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-timer.C:
		p.mu.RUnlock()
		return ErrBusy
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		// The task still runs; the caller just stops waiting.
		return ctx.Err()
	}
}

// Stats describes the pool for the status endpoint.
type Stats struct {
	Workers    int `json:"workers"`
	QueueDepth int `json:"queue_depth"`
	Pending    int `json:"pending"`
}

// Stats returns a point-in-time view of the pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueDepth: cap(p.tasks),
		Pending:    len(p.tasks),
	}
}

// Close stops accepting work and waits for queued tasks to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
