package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mlolab/mloeval/internal/app/evaluate"
	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/strategy"
)

type replayCommand struct {
	scenario string
	strategy string
	trace    string
	output   outputFlags
}

// NewReplayCommand returns the replay command.
func NewReplayCommand(app *kingpin.Application) Command {
	c := &replayCommand{}
	cmd := app.Command("replay", "Replays a JSON lines packet event trace through a strategy.")
	cmd.Flag("scenario", "Scenario spec file with the links and flows setup, the baseline scenario is used when missing.").Short('s').StringVar(&c.scenario)
	registerStrategyFlag(cmd, &c.strategy)
	cmd.Flag("trace", "Packet event trace file, '-' reads from stdin.").Short('i').Required().StringVar(&c.trace)
	registerOutputFlags(cmd, &c.output)

	return c
}

func (r replayCommand) Name() string { return "replay" }
func (r replayCommand) Run(ctx context.Context, config RootConfig) error {
	logger := config.Logger.WithValues(log.Kv{"command": r.Name(), "trace": r.trace})

	inputs := []string{}
	if r.scenario != "" {
		inputs = append(inputs, r.scenario)
	}
	scenarios, err := loadScenarios(ctx, logger, inputs)
	if err != nil {
		return err
	}
	if len(scenarios) != 1 {
		return fmt.Errorf("replay needs a single scenario, got %d", len(scenarios))
	}

	var events io.Reader = config.Stdin
	if r.trace != "-" {
		f, err := os.Open(r.trace)
		if err != nil {
			return fmt.Errorf("could not open trace: %w", err)
		}
		defer f.Close()
		events = f
	}

	repo, closeRepo, err := r.output.resultRepository(ctx, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := evaluate.NewService(evaluate.ServiceConfig{
		Repository: repo,
		Reporter:   report.NewConsoleReporter(config.Stdout),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create evaluation service: %w", err)
	}

	_, err = svc.Replay(ctx, evaluate.ReplayRequest{
		Scenario: scenarios[0],
		Strategy: strategy.Kind(r.strategy),
		Events:   events,
	})
	return err
}
