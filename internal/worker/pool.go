// Package worker runs operations on bounded background pools and hands back
// futures.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"questguild/internal/apperr"
)

type job func()

// Pool is a fixed set of goroutines draining a bounded queue. It must be
// started before jobs run and closed to release its workers.
type Pool struct {
	name    string
	workers int
	logger  *log.Logger

	mu      sync.RWMutex
	queue   chan job
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func NewPool(name string, workers, queueSize int, logger *log.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{
		name:    name,
		workers: workers,
		logger:  logger,
		queue:   make(chan job, queueSize),
	}
}

func (p *Pool) Name() string { return p.name }

// Start launches the workers. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Close stops accepting jobs, lets queued jobs finish and waits for the
// workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		// Nobody will drain the queue; fail what is left.
		for j := range p.queue {
			j()
		}
		return
	}
	p.wg.Wait()
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.queue {
		j()
	}
}

func (p *Pool) enqueue(j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return apperr.Newf(apperr.CodeShutdown, "%s pool is closed", p.name)
	}
	select {
	case p.queue <- j:
		return nil
	default:
		return apperr.Newf(apperr.CodeBusy, "%s pool queue is full", p.name)
	}
}

// Submit queues fn on p. The returned Future resolves with fn's result, or
// with an error if the pool is closed, full, or ctx ends before fn starts.
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) Result[T]) *Future[T] {
	f := newFuture[T]()
	err := p.enqueue(func() {
		if err := ctx.Err(); err != nil {
			f.resolve(Fail[T](err))
			return
		}
		if p.closedBeforeStart() {
			f.resolve(Fail[T](apperr.Newf(apperr.CodeShutdown, "%s pool closed before start", p.name)))
			return
		}
		f.resolve(call(ctx, p, fn))
	})
	if err != nil {
		f.resolve(Fail[T](err))
	}
	return f
}

// Go is Submit for functions returning a (value, error) pair.
func Go[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	return Submit(ctx, p, func(ctx context.Context) Result[T] {
		return From(fn(ctx))
	})
}

func (p *Pool) closedBeforeStart() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed && !p.started
}

func call[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) Result[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("%s pool job panic: %v", p.name, r)
			res = Fail[T](fmt.Errorf("%s pool job panic: %v", p.name, r))
		}
	}()
	return fn(ctx)
}
