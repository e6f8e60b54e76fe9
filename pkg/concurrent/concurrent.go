package concurrent

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for each item with at most limit goroutines in flight.
// Unlike a plain errgroup, a failing action does not cancel its siblings:
// every item runs and the failures are joined in item order. limit <= 0
// means one goroutine per item.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}
	g := errgroup.Group{}
	if limit > 0 {
		g.SetLimit(limit)
	}

	errs := make([]error, len(items))
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = action(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// ParallelMap returns mapFn applied to every element of in, in input order.
// At most workers calls run at once; workers <= 0 runs them one at a time.
func ParallelMap[T, R any](in []T, workers int, mapFn func(T) R) []R {
	out := make([]R, len(in))
	g := errgroup.Group{}
	g.SetLimit(max(workers, 1))
	for i, v := range in {
		g.Go(func() error {
			out[i] = mapFn(v)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Batch splits in into consecutive chunks of at most size elements and runs
// action on each chunk in its own goroutine. size <= 0 means a single chunk.
func Batch[T any](in []T, size int, action func([]T)) {
	if len(in) == 0 {
		return
	}
	if size <= 0 {
		size = len(in)
	}
	g := errgroup.Group{}
	for chunk := range slices.Chunk(in, size) {
		g.Go(func() error {
			action(chunk)
			return nil
		})
	}
	_ = g.Wait()
}
