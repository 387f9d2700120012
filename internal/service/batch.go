package service

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxParallel bounds concurrent orchestrations when no limit is configured.
const DefaultMaxParallel = 4

// BatchRunner orchestrates many requests concurrently with a bounded number
// of in-flight model calls.
type BatchRunner struct {
	engine *Engine
	sem    *semaphore.Weighted
}

// NewBatchRunner creates a BatchRunner allowing maxParallel orchestrations at once.
func NewBatchRunner(engine *Engine, maxParallel int) *BatchRunner {
	if maxParallel < 1 {
		maxParallel = DefaultMaxParallel
	}
	return &BatchRunner{engine: engine, sem: semaphore.NewWeighted(int64(maxParallel))}
}

// Run orchestrates every request and returns the results in input order.
// Requests not started before ctx is done get the errored fallback, like
// any other failed orchestration.
func (b *BatchRunner) Run(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)

	for i := range reqs {
		if err := b.sem.Acquire(gctx, 1); err != nil {
			for j := i; j < len(reqs); j++ {
				results[j] = b.engine.abandon(gctx, reqs[j], err)
			}
			break
		}
		g.Go(func() error {
			defer b.sem.Release(1)
			results[i] = b.engine.Orchestrate(gctx, reqs[i])
			return nil
		})
	}

	_ = g.Wait() // orchestrations never fail
	return results
}
