// Package log has the logger used by every component. Values stored on a context with
// CtxWithValues are picked by the loggers derived with WithCtxValues, that's how the
// batch and run identifiers follow a run through the services.
package log

import "context"

// Kv is a helper type for structured logging fields usage.
type Kv = map[string]interface{}

// Logger is the interface that the loggers used by the library will use.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	WithValues(values map[string]interface{}) Logger
	WithCtxValues(ctx context.Context) Logger
	SetValuesOnCtx(parent context.Context, values map[string]interface{}) context.Context
}

// Noop logger doesn't log anything.
const Noop = noop(0)

type noop int

func (n noop) Infof(format string, args ...interface{})    {}
func (n noop) Warningf(format string, args ...interface{}) {}
func (n noop) Errorf(format string, args ...interface{})   {}
func (n noop) Debugf(format string, args ...interface{})   {}
func (n noop) WithValues(map[string]interface{}) Logger    { return n }
func (n noop) WithCtxValues(context.Context) Logger        { return n }

// SetValuesOnCtx stores the values so loggers with values can be derived later.
func (n noop) SetValuesOnCtx(parent context.Context, values Kv) context.Context {
	return CtxWithValues(parent, values)
}

type ctxValuesKey struct{}

// CtxWithValues returns a copy of parent with kv merged over the values already stored,
// the stored map is never mutated.
func CtxWithValues(parent context.Context, kv Kv) context.Context {
	current := ValuesFromCtx(parent)
	merged := make(Kv, len(current)+len(kv))
	for _, values := range []Kv{current, kv} {
		for k, v := range values {
			merged[k] = v
		}
	}

	return context.WithValue(parent, ctxValuesKey{}, merged)
}

// ValuesFromCtx returns the log values of a context, empty when none have been set.
func ValuesFromCtx(ctx context.Context) Kv {
	if values, ok := ctx.Value(ctxValuesKey{}).(Kv); ok {
		return values
	}

	return Kv{}
}

// RunKv returns the values that identify an evaluation run.
func RunKv(runID, scenario, strategy string, run int) Kv {
	return Kv{"run-id": runID, "scenario": scenario, "strategy": strategy, "run": run}
}
