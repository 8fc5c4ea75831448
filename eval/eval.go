// Package eval fans the per-pedigree likelihood computation out across
// a bounded worker pool. The only parallelism opportunity in this
// engine is across pedigrees — every mutator on a single pedigree's
// state (genotype lists, conditional tables, the loop-breaker driver)
// still runs single-threaded, but two different pedigrees share
// nothing and can peel concurrently.
package eval

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mathmed/kelvin/loopbreaker"
	"github.com/mathmed/kelvin/pedigree"
	"github.com/mathmed/kelvin/transmission"
)

// Result is one pedigree's outcome from a single sub-list evaluation.
type Result struct {
	Pedigree   *pedigree.Pedigree
	Likelihood float64
	// Err is non-nil if this pedigree's configuration was infeasible or
	// failed for any other reason. A failed pedigree does not abort the
	// others; it is only surfaced back to the caller.
	Err error
}

// DefaultConcurrency is used by EvaluateAll when concurrency <= 0.
const DefaultConcurrency = 8

// EvaluateAll computes Resolve(pedigree, subList, tensor) for every
// pedigree in peds, running at most concurrency pedigrees at a time.
// The tensor and subList are read-only shared state; each pedigree's
// own state is mutated only by the goroutine evaluating it. A
// per-pedigree error is recorded in that Result rather than aborting
// the batch; EvaluateAll's own returned error reports only fatal
// scheduling failures (a cancelled context) — a single infeasible
// pedigree is never fatal to the batch.
func EvaluateAll(ctx context.Context, peds []*pedigree.Pedigree, subList *pedigree.SubLocusList, tensor *transmission.Tensor, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	results := make([]Result, len(peds))
	sem := semaphore.NewWeighted(int64(concurrency))
	var fatal errors.Once

	g, gctx := errgroup.WithContext(ctx)
	for i, ped := range peds {
		i, ped := i, ped
		if err := sem.Acquire(gctx, 1); err != nil {
			fatal.Set(err)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			likelihood, err := loopbreaker.Resolve(ped, subList, tensor)
			if err != nil {
				log.Error.Printf("eval: pedigree %s failed: %v", ped.ID, err)
			}
			results[i] = Result{Pedigree: ped, Likelihood: likelihood, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatal.Set(err)
	}
	return results, fatal.Err()
}

// CombinedLikelihood multiplies every successful pedigree's
// contribution, matching the engine's independence assumption across
// pedigrees for a fixed sub-list. A pedigree that failed is skipped
// rather than zeroing the whole product, since a single malformed
// family should not silence every other family's evidence.
func CombinedLikelihood(results []Result) (product float64, failed []Result) {
	product = 1
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		product *= r.Likelihood
	}
	return product, failed
}
