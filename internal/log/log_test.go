package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlolab/mloeval/internal/log"
)

func TestCtxValues(t *testing.T) {
	tests := map[string]struct {
		ctx       func() context.Context
		expValues log.Kv
	}{
		"Without values, the context should return empty values.": {
			ctx:       context.Background,
			expValues: log.Kv{},
		},

		"Values set multiple times should be merged, the last ones have priority.": {
			ctx: func() context.Context {
				ctx := log.CtxWithValues(context.Background(), log.Kv{"batch-id": "b1", "run": 1})
				return log.CtxWithValues(ctx, log.RunKv("r1", "baseline", "greedy", 2))
			},
			expValues: log.Kv{"batch-id": "b1", "run-id": "r1", "scenario": "baseline", "strategy": "greedy", "run": 2},
		},

		"The noop logger should still store the values on the context.": {
			ctx: func() context.Context {
				return log.Noop.SetValuesOnCtx(context.Background(), log.Kv{"k": "v"})
			},
			expValues: log.Kv{"k": "v"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expValues, log.ValuesFromCtx(test.ctx()))
		})
	}
}

func TestCtxValuesParentIsNotMutated(t *testing.T) {
	parent := log.CtxWithValues(context.Background(), log.Kv{"a": 1})
	_ = log.CtxWithValues(parent, log.Kv{"a": 2, "b": 3})

	assert.Equal(t, log.Kv{"a": 1}, log.ValuesFromCtx(parent))
}
