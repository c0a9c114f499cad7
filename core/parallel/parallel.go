// Package parallel provides the worker helpers used by the ensembles: row
// chunking for matrix kernels and bounded fan-out for independent fits.
package parallel

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"

	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

// Parallelize divides items into one contiguous range per CPU core and runs
// fn on each range concurrently. It returns after every range is processed.
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg conc.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}
		wg.Go(func() { fn(start, end) })
	}
	// conc re-panics worker panics in the caller
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of
// items exceeds the threshold. Below it fn runs once over the whole range.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Degree resolves an n_jobs style setting into a worker count: values <= 0
// mean one worker per CPU.
func Degree(nJobs int) int {
	if nJobs <= 0 {
		return runtime.NumCPU()
	}
	return nJobs
}

// Map runs fn(ctx, i) for i in [0, n) with at most degree calls in flight.
// The first error cancels ctx for the remaining calls and is returned. A
// panic inside fn is converted into an error naming op. Callers write
// results into index i of a preallocated slice, so output order never
// depends on scheduling.
func Map(ctx context.Context, op string, n, degree int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Degree(degree))
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return scigoErrors.SafeExecute(op, func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return fn(gctx, i)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
