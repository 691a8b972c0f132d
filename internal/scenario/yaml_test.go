package scenario_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/qos"
	"github.com/mlolab/mloeval/internal/scenario"
	"github.com/mlolab/mloeval/internal/strategy"
)

func TestYAMLLoadSpec(t *testing.T) {
	tests := map[string]struct {
		specYaml string
		expModel *scenario.Scenario
		expErr   bool
	}{
		"Empty spec should fail.": {
			specYaml: ``,
			expErr:   true,
		},

		"Wrong spec YAML should fail.": {
			specYaml: `:`,
			expErr:   true,
		},

		"Spec without version should fail.": {
			specYaml: `
name: test
links: 2
flows: {total: 4}
duration: 1s
`,
			expErr: true,
		},

		"Spec with invalid version should fail.": {
			specYaml: `
version: "mloeval/v2"
name: test
links: 2
flows: {total: 4}
duration: 1s
`,
			expErr: true,
		},

		"Spec with unknown fields should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 2
flows: {total: 4}
duration: 1s
speed: 9000
`,
			expErr: true,
		},

		"Spec without duration should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 2
flows: {total: 4}
`,
			expErr: true,
		},

		"Spec with more classified flows than flows should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 2
flows: {total: 4, emergency: 3, critical: 2}
duration: 1s
`,
			expErr: true,
		},

		"Spec with too many links should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 17
flows: {total: 4}
duration: 1s
`,
			expErr: true,
		},

		"Spec with too many flows should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 2
flows: {total: 257}
duration: 1s
`,
			expErr: true,
		},

		"Spec with an unknown contract should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 2
flows:
  total: 4
  contracts:
    1: Gold
duration: 1s
`,
			expErr: true,
		},

		"Spec with a contract of a missing flow should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 2
flows:
  total: 4
  contracts:
    9: CriticalHigh
duration: 1s
`,
			expErr: true,
		},

		"Spec with more link profiles than links should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 1
flows: {total: 4}
duration: 1s
channel:
  links:
    - {success_probability: 0.9, base_delay_ms: 1}
    - {success_probability: 0.9, base_delay_ms: 1}
`,
			expErr: true,
		},

		"Spec with an invalid probability should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 1
flows: {total: 4}
duration: 1s
channel:
  links:
    - {success_probability: 1.5, base_delay_ms: 1}
`,
			expErr: true,
		},

		"Spec with an invalid PDR threshold should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 1
flows: {total: 4}
duration: 1s
monitor:
  pdr_threshold: 1.1
`,
			expErr: true,
		},

		"Spec with an interference longer than its period should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 1
flows: {total: 4}
duration: 1s
channel:
  interference: {period: 1s, active: 2s, factor: 0.5}
`,
			expErr: true,
		},

		"Spec with an unknown strategy should fail.": {
			specYaml: `
version: "mloeval/v1"
name: test
links: 1
flows: {total: 4}
duration: 1s
strategies: ["random"]
`,
			expErr: true,
		},

		"Spec with an invalid name should fail.": {
			specYaml: `
version: "mloeval/v1"
name: "-test-"
links: 1
flows: {total: 4}
duration: 1s
`,
			expErr: true,
		},

		"A minimal spec should get the defaults.": {
			specYaml: `
version: "mloeval/v1"
name: minimal
links: 2
flows: {total: 4}
duration: 5s
`,
			expModel: &scenario.Scenario{
				Name:             "minimal",
				NumLinks:         2,
				NumFlows:         4,
				Duration:         5 * time.Second,
				CriticalInterval: 10 * time.Millisecond,
				NormalInterval:   25 * time.Millisecond,
				PayloadBytes:     1000,
				LossTimeout:      100 * time.Millisecond,
				PDRThreshold:     0.95,
			},
		},

		"A complete spec should be loaded.": {
			specYaml: `
version: "mloeval/v1"
name: "interference-3links"
links: 3
flows:
  total: 8
  emergency: 1
  critical: 2
  contracts:
    7: "CriticalBasic"
duration: 10s
report_interval: 1s
traffic:
  critical_interval: 5ms
  normal_interval: 20ms
  payload_bytes: 500
  loss_timeout: 50ms
  duplicate_critical: true
channel:
  links:
    - success_probability: 0.9
      base_delay_ms: 4
      jitter_ms: 2
      capacity_mbps: 100
  interference:
    period: 3s
    active: 1500ms
    factor: 0.85
  critical_bonus: 1.05
  variation: 0.1
monitor:
  pdr_threshold: 0.9
strategies: ["round-robin", "sla-mlo"]
`,
			expModel: &scenario.Scenario{
				Name:              "interference-3links",
				NumLinks:          3,
				NumFlows:          8,
				QoS:               qos.Config{Emergency: 1, Critical: 2},
				Contracts:         map[model.FlowID]string{7: model.ContractCriticalBasic},
				Duration:          10 * time.Second,
				ReportInterval:    time.Second,
				CriticalInterval:  5 * time.Millisecond,
				NormalInterval:    20 * time.Millisecond,
				PayloadBytes:      500,
				LossTimeout:       50 * time.Millisecond,
				DuplicateCritical: true,
				PDRThreshold:      0.9,
				Links:             []scenario.Link{{SuccessProbability: 0.9, BaseDelayMs: 4, JitterMs: 2, CapacityMbps: 100}},
				Interference:      &scenario.Interference{Period: 3 * time.Second, Active: 1500 * time.Millisecond, Factor: 0.85},
				CriticalBonus:     1.05,
				Variation:         0.1,
				Strategies:        []strategy.Kind{strategy.KindRoundRobin, strategy.KindSLAMLO},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			gotModel, err := scenario.YAMLSpecLoader.LoadSpec(context.TODO(), []byte(test.specYaml))

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expModel, gotModel)
			}
		})
	}
}
