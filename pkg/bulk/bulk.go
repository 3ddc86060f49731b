// Package bulk runs an operation over many items with bounded parallelism.
//
// The archival commit phase uses it to fan hundreds of archive calls out to
// a worker pool. Failures are captured per item instead of aborting the
// batch: one revoked permission must not block the remaining resources.
package bulk

import (
	"context"
	"sync"
)

// DefaultWorkers is the pool size used when the caller passes zero.
const DefaultWorkers = 32

// Result pairs an item with the outcome of its operation.
type Result[T any] struct {
	Item T
	Err  error
}

// Failed filters results down to the ones whose operation returned an
// error.
func Failed[T any](results []Result[T]) []Result[T] {
	var failed []Result[T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Run applies op to every item using at most workers goroutines and returns
// one Result per item. Results arrive in completion order, not input order.
//
// Run always processes every item; a failing op only marks its own result.
// Cancelling ctx stops new work, and items never started are reported with
// the context's error.
func Run[T any](ctx context.Context, workers int, items []T, op func(ctx context.Context, item T) error) []Result[T] {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	work := make(chan T)
	results := make(chan Result[T], len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				results <- Result[T]{Item: item, Err: op(ctx, item)}
			}
		}()
	}

feed:
	for i, item := range items {
		select {
		case work <- item:
		case <-ctx.Done():
			for _, skipped := range items[i:] {
				results <- Result[T]{Item: skipped, Err: ctx.Err()}
			}
			break feed
		}
	}
	close(work)
	wg.Wait()
	close(results)

	out := make([]Result[T], 0, len(items))
	for r := range results {
		out = append(out, r)
	}
	return out
}
