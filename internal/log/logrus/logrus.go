package logrus

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mlolab/mloeval/internal/log"
)

type logger struct {
	*logrus.Entry
}

// NewLogrus returns a new log.Logger for a logrus implementation.
func NewLogrus(l *logrus.Entry) log.Logger {
	return logger{Entry: l}
}

// Config is the configuration used to build a logrus backed logger.
type Config struct {
	Out     io.Writer
	JSON    bool
	Debug   bool
	NoColor bool
	Values  log.Kv
}

// New creates a logger from the configuration.
func New(cfg Config) log.Logger {
	l := logrus.New()
	if cfg.Out != nil {
		l.Out = cfg.Out
	}

	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !cfg.NoColor,
			DisableColors: cfg.NoColor,
			FullTimestamp: true,
		})
	}

	if cfg.Debug {
		l.SetLevel(logrus.DebugLevel)
	}

	return NewLogrus(logrus.NewEntry(l)).WithValues(cfg.Values)
}

func (l logger) WithValues(kv log.Kv) log.Logger {
	newLogger := l.Entry.WithFields(kv)
	return NewLogrus(newLogger)
}

func (l logger) WithCtxValues(ctx context.Context) log.Logger {
	return l.WithValues(log.ValuesFromCtx(ctx))
}

func (l logger) SetValuesOnCtx(parent context.Context, values log.Kv) context.Context {
	return log.CtxWithValues(parent, values)
}
