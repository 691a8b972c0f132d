package qos_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/qos"
)

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		flowID    model.FlowID
		emergency int
		critical  int
		expClass  qos.Class
	}{
		"A flow below the emergency count should be emergency.": {
			flowID: 0, emergency: 2, critical: 3,
			expClass: qos.Class{Tier: model.TierEmergency, Critical: true, Priority: 3},
		},

		"The first flow after the emergency ones should be critical.": {
			flowID: 2, emergency: 2, critical: 3,
			expClass: qos.Class{Tier: model.TierCritical, Critical: true, Priority: 2},
		},

		"The last critical flow should be critical.": {
			flowID: 4, emergency: 2, critical: 3,
			expClass: qos.Class{Tier: model.TierCritical, Critical: true, Priority: 2},
		},

		"The first flow after the critical ones should be normal.": {
			flowID: 5, emergency: 2, critical: 3,
			expClass: qos.Class{Tier: model.TierNormal, Critical: false, Priority: qos.ACVideo},
		},

		"With zero counts a voice flow should not be critical.": {
			flowID: 6, emergency: 0, critical: 0,
			expClass: qos.Class{Tier: model.TierNormal, Critical: false, Priority: qos.ACVoice},
		},

		"With zero counts a best effort flow should be normal.": {
			flowID: 8, emergency: 0, critical: 0,
			expClass: qos.Class{Tier: model.TierNormal, Critical: false, Priority: qos.ACBestEffort},
		},

		"Only critical flows configured should start at ID zero.": {
			flowID: 0, emergency: 0, critical: 1,
			expClass: qos.Class{Tier: model.TierCritical, Critical: true, Priority: 2},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := qos.Classify(test.flowID, test.emergency, test.critical)
			assert.Equal(t, test.expClass, got)

			// Deterministic.
			assert.Equal(t, got, qos.Config{Emergency: test.emergency, Critical: test.critical}.Classify(test.flowID))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]struct {
		config     qos.Config
		totalFlows int
		expErr     bool
	}{
		"All flows assigned to tiers should be valid.": {
			config:     qos.Config{Emergency: 2, Critical: 6},
			totalFlows: 8,
		},

		"No special flows should be valid.": {
			config:     qos.Config{},
			totalFlows: 8,
		},

		"Tiers exceeding the total flows should fail.": {
			config:     qos.Config{Emergency: 4, Critical: 5},
			totalFlows: 8,
			expErr:     true,
		},

		"Negative counts should fail.": {
			config:     qos.Config{Emergency: -1},
			totalFlows: 8,
			expErr:     true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.config.Validate(test.totalFlows)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
