package evaluate

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/scenario"
	"github.com/mlolab/mloeval/internal/strategy"
)

// BatchRequest is the request of a scenario × strategy × run matrix.
type BatchRequest struct {
	Scenarios []scenario.Scenario
	// Strategies overrides the scenario strategies. With none of both, all the
	// strategies are evaluated.
	Strategies []strategy.Kind
	// Runs is the number of runs of every scenario and strategy pair.
	Runs int
	// BaseSeed is added to the run number to get the run seed, so every strategy of the
	// same run number gets the same traffic.
	BaseSeed int64
	// Workers is the number of concurrent runs, the number of CPUs when 0.
	Workers int
}

// BatchResult is the outcome of a batch.
type BatchResult struct {
	// Results are ordered by scenario, strategy and run number.
	Results []report.RunResult
	Failed  int
	// Comparison aggregates the results by SLA tier and strategy.
	Comparison []report.Comparison
}

type batchJob struct {
	req RunRequest
	idx int
}

func (s Service) batchJobs(req BatchRequest) []batchJob {
	jobs := []batchJob{}
	for _, sc := range req.Scenarios {
		kinds := req.Strategies
		if len(kinds) == 0 {
			kinds = sc.Strategies
		}
		if len(kinds) == 0 {
			kinds = strategy.Kinds()
		}

		for _, k := range kinds {
			for run := 1; run <= req.Runs; run++ {
				jobs = append(jobs, batchJob{
					idx: len(jobs),
					req: RunRequest{Scenario: sc, Strategy: k, RunNumber: run, Seed: req.BaseSeed + int64(run)},
				})
			}
		}
	}
	return jobs
}

// Batch runs the whole matrix with a bounded number of workers. A failed run is logged
// and counted, it doesn't stop the batch. Only a context cancellation does.
func (s Service) Batch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Scenarios) == 0 {
		return nil, fmt.Errorf("at least one scenario is required")
	}

	if req.Runs < 1 {
		return nil, fmt.Errorf("at least one run is required")
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Every run logs the batch it belongs to.
	ctx = s.logger.SetValuesOnCtx(ctx, log.Kv{"batch-id": uuid.NewString()})
	logger := s.logger.WithCtxValues(ctx)

	jobs := s.batchJobs(req)
	results := make([]*report.RunResult, len(jobs))
	logger.Infof("running %d evaluations with %d workers", len(jobs), workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			res, err := s.Run(gctx, job.req)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				logger.WithValues(log.Kv{"scenario": job.req.Scenario.Name, "strategy": string(job.req.Strategy), "run": job.req.RunNumber}).
					Errorf("run failed: %s", err)
				return nil
			}
			results[job.idx] = res
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("batch interrupted: %w", ctx.Err())
	}

	out := &BatchResult{Results: make([]report.RunResult, 0, len(jobs))}
	for _, r := range results {
		if r == nil {
			out.Failed++
			continue
		}
		out.Results = append(out.Results, *r)
	}

	logger.Infof("batch finished: %d runs, %d failed", len(out.Results), out.Failed)

	out.Comparison = report.Compare(out.Results)
	err = s.reporter.ReportComparison(ctx, out.Comparison)
	if err != nil {
		return nil, fmt.Errorf("could not report strategy comparison: %w", err)
	}

	return out, nil
}
