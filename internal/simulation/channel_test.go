package simulation_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/simulation"
)

func TestNewChannelModelConfig(t *testing.T) {
	tests := map[string]struct {
		config simulation.ChannelModelConfig
		expErr bool
	}{
		"Default profiles should be valid.": {
			config: simulation.ChannelModelConfig{NumLinks: 4},
		},

		"No links should fail.": {
			config: simulation.ChannelModelConfig{},
			expErr: true,
		},

		"More profiles than links should fail.": {
			config: simulation.ChannelModelConfig{NumLinks: 1, Links: []simulation.LinkProfile{{}, {}}},
			expErr: true,
		},

		"Probabilities out of range should fail.": {
			config: simulation.ChannelModelConfig{NumLinks: 1, Links: []simulation.LinkProfile{{SuccessProbability: 1.2}}},
			expErr: true,
		},

		"An interference active span longer than the period should fail.": {
			config: simulation.ChannelModelConfig{NumLinks: 1, Interference: &simulation.Interference{Period: time.Second, Active: 2 * time.Second, Factor: 0.5}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := simulation.NewChannelModel(test.config)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChannelModelSuccessProbability(t *testing.T) {
	cm, err := simulation.NewChannelModel(simulation.ChannelModelConfig{
		NumLinks:     4,
		Interference: &simulation.DefaultInterference,
	})
	require.NoError(t, err)

	tests := map[string]struct {
		link     model.LinkID
		at       time.Duration
		critical bool
		expProb  float64
	}{
		"First link without interference.":            {link: 0, at: 2 * time.Second, expProb: 0.95},
		"Second link without interference.":           {link: 1, at: 2 * time.Second, expProb: 0.97},
		"Later links use the best profile.":           {link: 3, at: 2 * time.Second, expProb: 0.98},
		"Interference reduces the probability.":       {link: 0, at: 3200 * time.Millisecond, expProb: 0.95 * 0.85},
		"Critical packets get a bonus.":               {link: 1, at: 2 * time.Second, critical: true, expProb: 0.97 * 1.02},
		"Critical packets on the best link.":          {link: 2, at: 1600 * time.Millisecond, critical: true, expProb: 0.98 * 1.02},
		"Critical packets under interference.":        {link: 2, at: 0, critical: true, expProb: 0.98 * 0.85 * 1.02},
		"Interference ends at the active span limit.": {link: 0, at: 1500 * time.Millisecond, expProb: 0.95},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := cm.SuccessProbability(test.link, test.at, test.critical)
			assert.InDelta(t, test.expProb, got, 1e-9)
		})
	}
}

func TestChannelModelTransmit(t *testing.T) {
	cm, err := simulation.NewChannelModel(simulation.ChannelModelConfig{
		NumLinks: 2,
		Links: []simulation.LinkProfile{
			{SuccessProbability: 0},
			{SuccessProbability: 1, BaseDelayMs: 2, JitterMs: 1},
		},
		Rand: rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)

	delivered := 0
	for i := 0; i < 1000; i++ {
		ok, _ := cm.Transmit(0, time.Duration(i)*time.Millisecond, false)
		assert.False(t, ok)

		ok, delay := cm.Transmit(1, time.Duration(i)*time.Millisecond, false)
		if ok {
			delivered++
			assert.GreaterOrEqual(t, delay, 2.0)
			assert.LessOrEqual(t, delay, 3.0)
		}
	}

	// With ±5% variation at least 95% of the packets are delivered.
	assert.GreaterOrEqual(t, delivered, 900)
}
