package commands

import (
	"context"
	"io"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/strategy"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command is a mloeval subcommand, registered on main by name.
type Command interface {
	Name() string
	Run(ctx context.Context, config RootConfig) error
}

// RootConfig has the global flags and the instances shared by all the commands.
type RootConfig struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootConfig initializes the main root configuration.
func NewRootConfig(app *kingpin.Application) *RootConfig {
	c := &RootConfig{}

	// Register.
	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	return c
}

// outputFlags are the result storage flags, every flag set adds a result repository.
type outputFlags struct {
	csvPath    string
	sqlitePath string
}

func registerOutputFlags(cmd *kingpin.CmdClause, o *outputFlags) {
	cmd.Flag("csv-out", "CSV file where the results will be appended, the header is only written on new files.").StringVar(&o.csvPath)
	cmd.Flag("sqlite-out", "SQLite database where the results will be stored, created when missing.").StringVar(&o.sqlitePath)
}

// registerStrategyFlag registers the single strategy flag, SLA-MLO by default.
func registerStrategyFlag(cmd *kingpin.CmdClause, kind *string) {
	cmd.Flag("strategy", "Link selection strategy.").Short('t').Default(string(strategy.KindSLAMLO)).EnumVar(kind, strategyKindNames()...)
}

func strategyKindNames() []string {
	names := []string{}
	for _, k := range strategy.Kinds() {
		names = append(names, string(k))
	}
	return names
}
