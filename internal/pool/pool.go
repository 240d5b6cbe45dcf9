// Package pool provides a fixed-size goroutine pool with a bounded queue.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when submitting to a drained pool.
var ErrClosed = errors.New("pool: closed")

// Pool runs fn for every submitted item on a fixed number of goroutines.
// Items already queued when the pool is drained are still handed to fn;
// fn checks its context to decide whether to do the work.
type Pool[T any] struct {
	ctx     context.Context
	queue   chan T
	process func(ctx context.Context, t T)
	wg      sync.WaitGroup
	running atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New creates and starts a pool with n goroutines and queue capacity depth.
func New[T any](ctx context.Context, n, depth int, fn func(context.Context, T)) *Pool[T] {
	if n < 1 {
		n = 1
	}
	if depth < 0 {
		depth = 0
	}
	p := &Pool[T]{
		ctx:     ctx,
		queue:   make(chan T, depth),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run()
		}()
	}
	return p
}

func (p *Pool[T]) run() {
	for t := range p.queue {
		p.running.Add(1)
		p.process(p.ctx, t)
		p.running.Add(-1)
	}
}

// Submit enqueues t without blocking. It returns false if the queue is full
// or the pool is drained.
func (p *Pool[T]) Submit(t T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// SubmitWait enqueues t, blocking until there is room or ctx is done.
// Cancel ctx before calling Drain, otherwise Drain waits for it.
func (p *Pool[T]) SubmitWait(ctx context.Context, t T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain closes the queue and waits for all workers to finish. Safe to call
// more than once.
func (p *Pool[T]) Drain() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// QueueLen returns how many items are waiting for a worker.
func (p *Pool[T]) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *Pool[T]) QueueCap() int {
	return cap(p.queue)
}

// Running returns how many items workers are processing right now.
func (p *Pool[T]) Running() int {
	return int(p.running.Load())
}
