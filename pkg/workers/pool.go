// Package workers runs independent per-record tasks on a bounded pool and
// returns their results in submission order.
package workers

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultCount returns the default pool size: available CPUs minus one,
// at least one.
func DefaultCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Map applies fn to every item with at most workers concurrent calls
// (DefaultCount when workers < 1). Result i belongs to item i. The first
// error aborts the batch: no new tasks start and the error is returned.
// fn must not share mutable state with other calls.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if workers < 1 {
		workers = DefaultCount()
	}

	results := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, items[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
