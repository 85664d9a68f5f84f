package trials

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Observer is told about every finished trial. Implementations must be safe
// for concurrent use.
type Observer interface {
	TrialFinished(duration time.Duration, err error)
}

// Pool is a fixed budget of concurrent trial slots. One pool is created per
// run and reused by every batch; batches never overlap, so the budget bounds
// the whole run.
type Pool struct {
	size     int
	sem      *semaphore.Weighted
	observer Observer
}

// NewPool creates a pool with size slots. Sizes below one are raised to one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// WithObserver attaches an observer and returns the pool
func (p *Pool) WithObserver(o Observer) *Pool {
	p.observer = o
	return p
}

// Size returns the number of slots
func (p *Pool) Size() int {
	return p.size
}

// Run executes fn for i = 0..n-1 with at most pool-size trials in flight and
// waits for all of them. results[i] is the value returned by trial i no matter
// in which order trials finish. The first failing trial cancels the context
// passed to the others and its error is returned; no partial batch is returned.
func Run[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)

	var acquireErr error
	for i := 0; i < n; i++ {
		if err := p.sem.Acquire(gctx, 1); err != nil {
			acquireErr = err
			break
		}
		i := i
		g.Go(func() error {
			defer p.sem.Release(1)
			start := time.Now()
			v, err := fn(gctx, i)
			if p.observer != nil {
				p.observer.TrialFinished(time.Since(start), err)
			}
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if acquireErr != nil {
		return nil, acquireErr
	}
	return results, nil
}

// Retry wraps a trial so that failures accepted by retryable are retried with
// a new attempt number, up to attempts extra times. The attempt number lets
// the trial draw a fresh subsample.
func Retry[T any](attempts int, retryable func(error) bool, fn func(ctx context.Context, i, attempt int) (T, error)) func(ctx context.Context, i int) (T, error) {
	return func(ctx context.Context, i int) (T, error) {
		var (
			v   T
			err error
		)
		for attempt := 0; attempt <= attempts; attempt++ {
			v, err = fn(ctx, i, attempt)
			if err == nil || !retryable(err) {
				return v, err
			}
		}
		return v, err
	}
}
