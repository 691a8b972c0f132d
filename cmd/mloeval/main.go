package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mlolab/mloeval/cmd/mloeval/commands"
	"github.com/mlolab/mloeval/internal/info"
	"github.com/mlolab/mloeval/internal/log"
	loglogrus "github.com/mlolab/mloeval/internal/log/logrus"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := kingpin.New("mloeval", "WiFi MLO link selection strategy evaluator.")
	app.DefaultEnvars()
	config := commands.NewRootConfig(app)

	// Setup commands (registers flags).
	simulateCmd := commands.NewSimulateCommand(app)
	batchCmd := commands.NewBatchCommand(app)
	replayCmd := commands.NewReplayCommand(app)
	validateCmd := commands.NewValidateCommand(app)
	versionCmd := commands.NewVersionCommand(app)

	cmds := map[string]commands.Command{
		simulateCmd.Name(): simulateCmd,
		batchCmd.Name():    batchCmd,
		replayCmd.Name():   replayCmd,
		validateCmd.Name(): validateCmd,
		versionCmd.Name():  versionCmd,
	}

	// Parse commandline.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set up global dependencies.
	config.Stdin = stdin
	config.Stdout = stdout
	config.Stderr = stderr
	config.Logger = getLogger(*config)

	// Execute command.
	err = cmds[cmdName].Run(ctx, *config)
	if err != nil {
		return fmt.Errorf("%q command failed: %w", cmdName, err)
	}

	return nil
}

// getLogger returns the application logger.
func getLogger(config commands.RootConfig) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// By default logger goes to stderr (so it can split stdout prints).
	logger := loglogrus.New(loglogrus.Config{
		Out:     config.Stderr,
		JSON:    config.LoggerType == commands.LoggerTypeJSON,
		Debug:   config.Debug,
		NoColor: config.NoColor,
		Values:  log.Kv{"version": info.Version},
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s", err)
		os.Exit(1)
	}
}
