package worker

import "context"

// Future resolves once with the Result of a submitted job.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a Future that already holds r.
func Resolved[T any](r Result[T]) *Future[T] {
	f := newFuture[T]()
	f.resolve(r)
	return f
}

func (f *Future[T]) resolve(r Result[T]) {
	f.result = r
	close(f.done)
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done. Cancelling ctx
// stops the wait, not the job.
func (f *Future[T]) Wait(ctx context.Context) Result[T] {
	select {
	case <-f.done:
		return f.result
	case <-ctx.Done():
		return Fail[T](ctx.Err())
	}
}

// Then calls fn with the result on its own goroutine.
func (f *Future[T]) Then(fn func(Result[T])) {
	go func() {
		<-f.done
		fn(f.result)
	}()
}
