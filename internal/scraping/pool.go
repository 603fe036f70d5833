package scraping

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/semag-arcade/game-importer/pkg/config"
	"golang.org/x/sync/errgroup"
)

// PoolConfig configures RunPool
type PoolConfig struct {
	Workers    int
	JobTimeout time.Duration // zero means no per-job timeout
}

// PoolConfigFrom converts the pool section of the config
func PoolConfigFrom(cfg *config.PoolConfig) PoolConfig {
	if cfg == nil {
		return PoolConfig{Workers: 1}
	}
	return PoolConfig{Workers: cfg.Workers, JobTimeout: cfg.JobTimeout.Duration}
}

// JobResult is the outcome of one pool job
type JobResult[T, R any] struct {
	Index    int // position of the item in the input slice
	Item     T
	Value    R
	Err      error
	Duration time.Duration
}

// JobFunc does the work for a single item
type JobFunc[T, R any] func(ctx context.Context, item T) (R, error)

// RunPool runs fn for every item with at most cfg.Workers jobs in flight.
// Results are returned in completion order and onResult, when non-nil, is
// called once per result in that same order. Job errors are recorded in
// the result and never stop the other jobs.
func RunPool[T, R any](ctx context.Context, cfg PoolConfig, items []T, fn JobFunc[T, R], onResult func(JobResult[T, R])) []JobResult[T, R] {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		results = make([]JobResult[T, R], 0, len(items))
	)

	log.Debug().
		Int("workers", workers).
		Int("jobs", len(items)).
		Dur("job_timeout", cfg.JobTimeout).
		Msg("Starting worker pool")

	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			jobCtx := ctx
			if cfg.JobTimeout > 0 {
				var cancel context.CancelFunc
				jobCtx, cancel = context.WithTimeout(ctx, cfg.JobTimeout)
				defer cancel()
			}

			start := time.Now()
			value, err := fn(jobCtx, item)
			res := JobResult[T, R]{
				Index:    i,
				Item:     item,
				Value:    value,
				Err:      err,
				Duration: time.Since(start),
			}

			mu.Lock()
			results = append(results, res)
			if onResult != nil {
				onResult(res)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// CountFailures returns how many results carry an error
func CountFailures[T, R any](results []JobResult[T, R]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
