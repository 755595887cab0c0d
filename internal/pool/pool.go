// Package pool runs an ordered sequence of tasks with a fixed degree of
// parallelism, preserving index-to-result mapping. It generalizes the
// worker's fixed-chunk semaphore-and-waitgroup pattern into a reusable
// generic function decoupled from any one domain.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes fn for every item in items with at most concurrency
// goroutines in flight, and returns results in the same order as items.
// Execution order across items is nondeterministic; only the returned
// slice's ordering is guaranteed.
//
// fn is expected to convert unit-level failures (inference.SkipUnit) into
// a sentinel R value rather than returning an error — Run does not retry
// or drop items. A non-nil error from fn cancels the context passed to
// the other calls (fn is still called for every item) and the first such
// error is returned to the caller with nil results; the worker pool
// itself carries no opinion on whether a unit's own failure should be
// treated this way.
func Run[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	if len(items) == 0 {
		return results, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(gctx, item, i)
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

// RunTolerant is like Run, but fn's error is never propagated: instead it
// is passed to onErr to produce the sentinel result stored at that index.
// This matches the analyzer stages, where a SkipUnit degrades a single
// segment to an empty result, or a span to a skipped one, without
// aborting the others.
func RunTolerant[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T, index int) (R, error), onErr func(item T, index int, err error) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(gctx, item, i)
			if err != nil {
				results[i] = onErr(item, i, err)
				return nil
			}
			results[i] = r
			return nil
		})
	}

	_ = g.Wait() // RunTolerant's fn never returns a propagating error
	return results
}
