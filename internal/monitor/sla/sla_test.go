package sla_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/qos"
)

func newMonitor(t *testing.T, emergency, critical int) *sla.Monitor {
	m, err := sla.NewMonitor(sla.MonitorConfig{QoS: qos.Config{Emergency: emergency, Critical: critical}})
	require.NoError(t, err)
	return m
}

func TestSetFlowContract(t *testing.T) {
	tests := map[string]struct {
		flowID      model.FlowID
		expContract string
		expErr      bool
	}{
		"Emergency flows should get the critical high contract.": {flowID: 0, expContract: model.ContractCriticalHigh},
		"Critical flows should get the critical basic contract.":  {flowID: 2, expContract: model.ContractCriticalBasic},
		"Normal flows should get the non critical contract.":      {flowID: 7, expContract: model.ContractNonCritical},
		"Invalid flows should fail.":                              {flowID: 256, expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := newMonitor(t, 2, 3)
			c, err := m.SetFlowContract(test.flowID)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrInvalidFlow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expContract, c.Name)

			// Idempotent.
			c2, err := m.SetFlowContract(test.flowID)
			require.NoError(t, err)
			assert.Equal(t, c, c2)
		})
	}
}

func TestFlowContract(t *testing.T) {
	tests := map[string]struct {
		flowID      model.FlowID
		override    string
		expContract string
		expErr      bool
	}{
		"Flows without record should get their tier contract.": {flowID: 0, expContract: model.ContractCriticalHigh},
		"Overridden flows should get the override.":            {flowID: 7, override: model.ContractCriticalBasic, expContract: model.ContractCriticalBasic},
		"Invalid flows should fail.":                           {flowID: -1, expErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := newMonitor(t, 2, 3)
			if test.override != "" {
				require.NoError(t, m.OverrideFlowContract(test.flowID, test.override))
			}
			flows := len(m.Flows())

			c, err := m.FlowContract(test.flowID)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrInvalidFlow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expContract, c.Name)

			// Reading the contract doesn't create records.
			assert.Len(t, m.Flows(), flows)
		})
	}
}

func TestDeviation(t *testing.T) {
	tests := map[string]struct {
		delays       []float64
		expAvg       float64
		expDeviation model.Measurement
	}{
		"Five packets at 2ms on a 1ms contract should deviate 100%.": {
			delays:       []float64{2, 2, 2, 2, 2},
			expAvg:       2,
			expDeviation: model.Measured(100),
		},

		"Five packets at 0.5ms on a 1ms contract should not deviate.": {
			delays:       []float64{0.5, 0.5, 0.5, 0.5, 0.5},
			expAvg:       0.5,
			expDeviation: model.Measured(0),
		},

		"Zero delays should be floored.": {
			delays:       []float64{0, 0},
			expAvg:       sla.MinDelayMs,
			expDeviation: model.Measured(0),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := newMonitor(t, 1, 0)
			for i, d := range test.delays {
				err := m.UpdateFlowMetrics(0, true, d, time.Duration(i)*time.Millisecond, "test")
				require.NoError(t, err)
			}

			f, ok := m.Flow(0)
			require.True(t, ok)
			assert.Equal(t, model.ContractCriticalHigh, f.Contract.Name)
			assert.InDelta(t, test.expAvg, f.AvgDelayMs.Value, 1e-9)
			assert.Equal(t, test.expDeviation, m.Deviation(0))
		})
	}
}

func TestDeviationNoData(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor(t, 1, 0)
	assert.Equal(model.NoData, m.Deviation(0))
	assert.Equal(model.NoData, m.Deviation(300))

	// Only losses, there are packets but no delay measurements.
	require.NoError(t, m.UpdateFlowMetrics(0, false, 0, 0, "test"))
	assert.Equal(model.NoData, m.Deviation(0))

	f, _ := m.Flow(0)
	assert.Equal(uint64(1), f.TotalPackets)
	assert.Equal(uint64(1), f.ExceedingPackets)
}

func TestAggregatesNoDataIsDistinguishable(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor(t, 1, 1)

	// Nothing at all.
	assert.Equal(model.NoData, m.OverallDeviation())
	assert.Equal(model.NoData, m.TierDeviation(model.TierEmergency))

	// A critical flow with only losses: the flow exists but has no measurements,
	// its own query and the tier aggregate are both no data.
	require.NoError(t, m.UpdateFlowMetrics(1, false, 0, 0, "test"))
	assert.Equal(model.NoData, m.Deviation(1))
	assert.Equal(model.NoData, m.TierDeviation(model.TierCritical))

	// A compliant normal flow is a real zero.
	require.NoError(t, m.UpdateFlowMetrics(5, true, 10, 0, "test"))
	assert.Equal(model.Measured(0), m.Deviation(5))
	assert.Equal(model.Measured(0), m.TierDeviation(model.TierNormal))
	assert.Equal(model.Measured(0), m.OverallDeviation())
	assert.NotEqual(m.TierDeviation(model.TierNormal), m.TierDeviation(model.TierCritical))
	assert.Equal(model.NoData, m.TierDeviation(model.TierEmergency))
}

func TestAggregates(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor(t, 1, 1)
	// Emergency flow 0: avg 2ms on 1ms, 100%.
	require.NoError(t, m.UpdateFlowMetrics(0, true, 2, 0, "s"))
	// Critical flow 1: avg 75ms on 50ms, 50%.
	require.NoError(t, m.UpdateFlowMetrics(1, true, 75, 0, "s"))
	// Normal flows 2 and 3: 0% and 100%.
	require.NoError(t, m.UpdateFlowMetrics(2, true, 50, 0, "s"))
	require.NoError(t, m.UpdateFlowMetrics(3, true, 200, 0, "s"))

	assert.InDelta(100, m.TierDeviation(model.TierEmergency).Value, 1e-9)
	assert.InDelta(50, m.TierDeviation(model.TierCritical).Value, 1e-9)
	assert.InDelta(50, m.TierDeviation(model.TierNormal).Value, 1e-9)
	assert.InDelta(50, m.ContractDeviation(model.ContractNonCritical).Value, 1e-9)
	assert.InDelta(62.5, m.OverallDeviation().Value, 1e-9)
	assert.Equal(model.NoData, m.ContractDeviation("unknown"))

	assert.Len(m.Flows(), 4)
}

func TestComplianceWindow(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor(t, 0, 0)

	// NonCritical contract: 100ms, window of 10.
	for i := 0; i < 9; i++ {
		require.NoError(t, m.UpdateFlowMetrics(4, true, 10, 0, "s"))
	}
	f, _ := m.Flow(4)
	assert.Equal(9, f.ComplianceBuffered)
	assert.Empty(f.WindowErrors)
	assert.False(f.MovingAvgError.OK)

	// The 10th packet (a loss) saturates the window.
	require.NoError(t, m.UpdateFlowMetrics(4, false, 0, 0, "s"))
	f, _ = m.Flow(4)
	assert.Equal([]float64{10}, f.WindowErrors)
	assert.Equal(model.Measured(10), f.MovingAvgError)
	assert.Equal(9, f.ComplianceBuffered)

	// Next one too slow, window holds 8 good and 2 bad.
	require.NoError(t, m.UpdateFlowMetrics(4, true, 150, 0, "s"))
	f, _ = m.Flow(4)
	assert.Equal([]float64{10, 20}, f.WindowErrors)
	assert.Equal(model.Measured(15), f.MovingAvgError)
	assert.Equal(uint64(2), f.ExceedingPackets)
}

func TestIntervalErrors(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor(t, 0, 0)
	// First second: 1 of 4 exceeding.
	for i, ok := range []bool{true, true, true, false} {
		require.NoError(t, m.UpdateFlowMetrics(9, ok, 1, time.Duration(i)*100*time.Millisecond, "s"))
	}
	// Second interval starts.
	require.NoError(t, m.UpdateFlowMetrics(9, true, 1, 1200*time.Millisecond, "s"))

	f, _ := m.Flow(9)
	assert.Equal([]float64{25}, f.IntervalErrors)

	// A long gap folds the current interval.
	require.NoError(t, m.UpdateFlowMetrics(9, true, 1, 5*time.Second, "s"))
	f, _ = m.Flow(9)
	assert.Equal([]float64{25, 0}, f.IntervalErrors)
}

func TestIntervalHistoryIsBounded(t *testing.T) {
	m := newMonitor(t, 0, 0)
	for i := 0; i < 30; i++ {
		require.NoError(t, m.UpdateFlowMetrics(9, true, 1, time.Duration(i)*time.Second, "s"))
	}

	f, _ := m.Flow(9)
	assert.Len(t, f.IntervalErrors, sla.IntervalErrorHistorySize)
}

func TestOverrideFlowContract(t *testing.T) {
	assert := assert.New(t)

	m := newMonitor(t, 0, 0)
	require.NoError(t, m.UpdateFlowMetrics(3, true, 20, 0, "a"))

	err := m.OverrideFlowContract(3, model.ContractCriticalHigh)
	require.NoError(t, err)

	f, _ := m.Flow(3)
	assert.Equal(model.ContractCriticalHigh, f.Contract.Name)
	assert.Equal(uint64(0), f.TotalPackets)
	assert.Equal(model.NoData, m.Deviation(3))

	// The override survives later assignments.
	c, err := m.SetFlowContract(3)
	require.NoError(t, err)
	assert.Equal(model.ContractCriticalHigh, c.Name)

	assert.ErrorIs(m.OverrideFlowContract(3, "Gold"), model.ErrUnknownContract)
	assert.ErrorIs(m.OverrideFlowContract(-1, model.ContractCriticalHigh), model.ErrInvalidFlow)
}

func TestUpdateSources(t *testing.T) {
	m := newMonitor(t, 0, 0)
	require.NoError(t, m.UpdateFlowMetrics(3, true, 20, 0, "greedy"))
	require.NoError(t, m.UpdateFlowMetrics(3, true, 20, 0, "greedy"))
	require.NoError(t, m.UpdateFlowMetrics(3, false, 0, 0, "sla-mlo"))
	assert.ErrorIs(t, m.UpdateFlowMetrics(3, true, -2, 0, "greedy"), model.ErrInvalidDelay)

	f, _ := m.Flow(3)
	assert.Equal(t, map[string]uint64{"greedy": 2, "sla-mlo": 1}, f.PacketsBySource)
}
