// Package asyncutil provides the single "may-suspend result" pipeline
// definition that both the synchronous and asynchronous downloader
// workflows are built on. A pipeline is expressed once, as a chain of
// Task values composed with AndThen/OrElse/Join/Transform, and then run
// through either a SyncRunner (runs on the calling goroutine) or an
// AsyncRunner (runs on a separate goroutine); Start and WhenAll fan
// several Tasks out and collect their results from channels.
// Keeping one definition and two runners is how reposync avoids
// maintaining the sync and async code paths as separate
// implementations that can drift out of lockstep.
package asyncutil

import "context"

// Task is a unit of work that produces a T or fails. Every combinator
// in this package both consumes and produces Task values, so pipelines
// compose without the caller ever touching a channel or goroutine
// directly.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of running a Task, materialized so it can be
// sent across a channel by AsyncRunner.
type Result[T any] struct {
	Value T
	Err   error
}

// AndThen runs t, and on success feeds its value into next, producing a
// U. If t fails, next is never invoked and the U zero value plus t's
// error is returned.
func AndThen[T, U any](t Task[T], next func(T) Task[U]) Task[U] {
	return func(ctx context.Context) (U, error) {
		v, err := t(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return next(v)(ctx)
	}
}

// OrElse runs t, and on failure falls back to recover, which gets a
// chance to produce a T from the error (for example: fall back to the
// next mirror in a base URL list).
func OrElse[T any](t Task[T], recover func(error) Task[T]) Task[T] {
	return func(ctx context.Context) (T, error) {
		v, err := t(ctx)
		if err == nil {
			return v, nil
		}
		return recover(err)(ctx)
	}
}

// Join runs a and then b, one after the other on the goroutine running
// the joined Task, and returns both results; if a fails, b is not run.
// The order is the same whichever Runner executes the joined Task.
func Join[A, B any](a Task[A], b Task[B]) Task[struct {
	A A
	B B
}] {
	return func(ctx context.Context) (struct {
		A A
		B B
	}, error) {
		var out struct {
			A A
			B B
		}
		av, err := a(ctx)
		if err != nil {
			return out, err
		}
		bv, err := b(ctx)
		if err != nil {
			return out, err
		}
		out.A, out.B = av, bv
		return out, nil
	}
}

// Transform maps a successful Task result through f without touching
// the error path.
func Transform[T, U any](t Task[T], f func(T) U) Task[U] {
	return func(ctx context.Context) (U, error) {
		v, err := t(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v), nil
	}
}

// Recover turns any error produced by t into a value, never failing.
// Used at the top of a pipeline run when the caller wants a Result
// rather than a propagated error, e.g. per-repository refresh in a
// batch where one failure must not abort the others.
func Recover[T any](t Task[T], onErr func(error) T) Task[T] {
	return func(ctx context.Context) (T, error) {
		v, err := t(ctx)
		if err != nil {
			return onErr(err), nil
		}
		return v, nil
	}
}

// Runner executes a Task and returns its Result. SyncRunner and
// AsyncRunner are the only two implementations; callers pick one at
// construction time based on whether they want the calling goroutine
// to block or a future-style handoff.
type Runner[T any] interface {
	Run(ctx context.Context, t Task[T]) Result[T]
}

// SyncRunner runs a Task on the calling goroutine and blocks until it
// completes or ctx is cancelled.
type SyncRunner[T any] struct{}

// Run implements Runner.
func (SyncRunner[T]) Run(ctx context.Context, t Task[T]) Result[T] {
	v, err := t(ctx)
	return Result[T]{Value: v, Err: err}
}

// AsyncRunner runs a Task on a new goroutine. Its Run still blocks
// until that goroutine has delivered the Result; Start and WhenAll are
// the way to fan out many tasks and collect them as they complete.
type AsyncRunner[T any] struct{}

// Run implements Runner, returning the Task's Result once the goroutine
// running it has finished.
func (AsyncRunner[T]) Run(ctx context.Context, t Task[T]) Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := t(ctx)
		ch <- Result[T]{Value: v, Err: err}
		close(ch)
	}()
	return <-ch
}

// Start launches t asynchronously and returns a channel delivering its
// single Result, without blocking the caller the way Run does. This is
// the primitive the async downloader workflow uses to fan multiple
// repository refreshes out across a worker pool and join on them as
// they land.
func Start[T any](ctx context.Context, t Task[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := t(ctx)
		ch <- Result[T]{Value: v, Err: err}
		close(ch)
	}()
	return ch
}

// WhenAll waits for every channel in chs to deliver, preserving order,
// and stops waiting early only when ctx is cancelled.
func WhenAll[T any](ctx context.Context, chs []<-chan Result[T]) ([]Result[T], error) {
	out := make([]Result[T], len(chs))
	for i, ch := range chs {
		select {
		case r := <-ch:
			out[i] = r
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}
