package commands

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/scenario"
	storagefs "github.com/mlolab/mloeval/internal/storage/fs"
)

type validateCommand struct {
	input string
}

// NewValidateCommand returns the validate command.
func NewValidateCommand(app *kingpin.Application) Command {
	c := &validateCommand{}
	cmd := app.Command("validate", "Validates the scenario specs.")
	cmd.Flag("input", "Scenario spec discovery path, will discover recursively all YAML files.").Short('i').Required().StringVar(&c.input)

	return c
}

func (v validateCommand) Name() string { return "validate" }
func (v validateCommand) Run(ctx context.Context, config RootConfig) error {
	logger := config.Logger.WithValues(log.Kv{"command": v.Name()})

	paths, err := discoverScenarioFiles(logger, v.input)
	if err != nil {
		return fmt.Errorf("could not discover files: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("0 scenario specs have been discovered")
	}

	failed := false
	total := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read scenario spec file data: %w", err)
		}

		logger := logger.WithValues(log.Kv{"file": path})
		for _, doc := range storagefs.SplitYAML(data) {
			total++
			_, err := scenario.YAMLSpecLoader.LoadSpec(ctx, doc)
			if err != nil {
				failed = true
				logger.Errorf("invalid scenario: %s", err)
			}
		}
		logger.Debugf("File validated")
	}

	if failed {
		return fmt.Errorf("validation failed")
	}

	logger.WithValues(log.Kv{"scenario-specs": total}).Infof("Validation succeeded")
	return nil
}
