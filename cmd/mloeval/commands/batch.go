package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mlolab/mloeval/internal/app/evaluate"
	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/strategy"
)

type batchCommand struct {
	scenarios  []string
	strategies []string
	runs       int
	seed       int64
	workers    int
	summaries  bool
	quiet      bool
	output     outputFlags
}

// NewBatchCommand returns the batch command.
func NewBatchCommand(app *kingpin.Application) Command {
	c := &batchCommand{}
	cmd := app.Command("batch", "Evaluates every scenario with every strategy multiple times.")
	cmd.Flag("scenario", "Scenario spec file or directory, will discover recursively all YAML files (can be repeated). The baseline scenario is used when missing.").Short('s').StringsVar(&c.scenarios)
	cmd.Flag("strategy", "Link selection strategy (can be repeated), by default the scenario ones or all of them.").Short('t').EnumsVar(&c.strategies, strategyKindNames()...)
	cmd.Flag("runs", "Number of runs of every scenario and strategy.").Default("5").IntVar(&c.runs)
	cmd.Flag("seed", "Base random seed, the run number is added to it.").Default("0").Int64Var(&c.seed)
	cmd.Flag("workers", "Concurrent runs, the number of CPUs when 0.").Default("0").IntVar(&c.workers)
	cmd.Flag("summaries", "Print the periodic summaries of the runs.").BoolVar(&c.summaries)
	cmd.Flag("quiet", "Don't print the run results.").Short('q').BoolVar(&c.quiet)
	registerOutputFlags(cmd, &c.output)

	return c
}

func (b batchCommand) Name() string { return "batch" }
func (b batchCommand) Run(ctx context.Context, config RootConfig) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := config.Logger.WithValues(log.Kv{"command": b.Name()})

	scenarios, err := loadScenarios(ctx, logger, b.scenarios)
	if err != nil {
		return err
	}

	// Periodic summaries of concurrent runs are only noise unless asked for.
	if !b.summaries {
		for i := range scenarios {
			scenarios[i].ReportInterval = 0
		}
	}

	kinds := []strategy.Kind{}
	for _, s := range b.strategies {
		kinds = append(kinds, strategy.Kind(s))
	}

	repo, closeRepo, err := b.output.resultRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	var reporter report.Reporter = report.NoopReporter
	if !b.quiet {
		reporter = report.NewConsoleReporter(config.Stdout)
	}

	svc, err := evaluate.NewService(evaluate.ServiceConfig{
		Repository: repo,
		Reporter:   reporter,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create evaluation service: %w", err)
	}

	res, err := svc.Batch(ctx, evaluate.BatchRequest{
		Scenarios:  scenarios,
		Strategies: kinds,
		Runs:       b.runs,
		BaseSeed:   b.seed,
		Workers:    b.workers,
	})
	if err != nil {
		return err
	}

	if res.Failed > 0 {
		return fmt.Errorf("%d of %d runs failed", res.Failed, res.Failed+len(res.Results))
	}

	return nil
}
