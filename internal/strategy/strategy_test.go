package strategy_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/qos"
	"github.com/mlolab/mloeval/internal/strategy"
)

type deps struct {
	links *link.Monitor
	sla   *sla.Monitor
}

func newStrategy(t *testing.T, kind strategy.Kind, numLinks int, q qos.Config, capacities []float64) (strategy.Strategy, deps) {
	t.Helper()

	lm, err := link.NewMonitor(link.MonitorConfig{NumLinks: numLinks, PDRThreshold: 0.9})
	require.NoError(t, err)
	sm, err := sla.NewMonitor(sla.MonitorConfig{QoS: q})
	require.NoError(t, err)

	s, err := strategy.New(kind, strategy.Config{
		NumLinks:    numLinks,
		QoS:         q,
		LinkMonitor: lm,
		SLAMonitor:  sm,
		Capacities:  capacities,
		Rand:        rand.New(rand.NewSource(42)),
	})
	require.NoError(t, err)

	return s, deps{links: lm, sla: sm}
}

func delivered(at time.Duration, flowID model.FlowID, linkID model.LinkID, delay float64, bytes uint32) model.PacketEvent {
	return model.PacketEvent{At: at, FlowID: flowID, LinkID: linkID, Success: true, DelayMs: delay, Bytes: bytes}
}

func TestNew(t *testing.T) {
	lm, _ := link.NewMonitor(link.MonitorConfig{NumLinks: 2})
	sm, _ := sla.NewMonitor(sla.MonitorConfig{})

	tests := map[string]struct {
		kind    strategy.Kind
		config  strategy.Config
		expName string
		expErr  error
	}{
		"Round robin.": {
			kind:    strategy.KindRoundRobin,
			config:  strategy.Config{NumLinks: 2, LinkMonitor: lm, SLAMonitor: sm},
			expName: "RoundRobin",
		},

		"Greedy.": {
			kind:    strategy.KindGreedy,
			config:  strategy.Config{NumLinks: 2, LinkMonitor: lm, SLAMonitor: sm},
			expName: "Greedy",
		},

		"Reliability.": {
			kind:    strategy.KindReliability,
			config:  strategy.Config{NumLinks: 2, LinkMonitor: lm, SLAMonitor: sm},
			expName: "ReliabilityAware",
		},

		"SLA MLO.": {
			kind:    strategy.KindSLAMLO,
			config:  strategy.Config{NumLinks: 2, LinkMonitor: lm, SLAMonitor: sm},
			expName: "SLA-MLO",
		},

		"An unknown kind should fail.": {
			kind:   strategy.Kind("random"),
			config: strategy.Config{NumLinks: 2, LinkMonitor: lm, SLAMonitor: sm},
			expErr: strategy.ErrUnknownKind,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := strategy.New(test.kind, test.config)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expName, s.Name())
		})
	}
}

func TestNewInvalidConfig(t *testing.T) {
	lm, _ := link.NewMonitor(link.MonitorConfig{NumLinks: 2})
	sm, _ := sla.NewMonitor(sla.MonitorConfig{})

	tests := map[string]strategy.Config{
		"Missing links.":                    {LinkMonitor: lm, SLAMonitor: sm},
		"Missing link monitor.":             {NumLinks: 2, SLAMonitor: sm},
		"Missing SLA monitor.":              {NumLinks: 2, LinkMonitor: lm},
		"Too many capacities.":              {NumLinks: 2, LinkMonitor: lm, SLAMonitor: sm, Capacities: []float64{1, 2, 3}},
		"Less links than the link monitor.": {NumLinks: 1, LinkMonitor: lm, SLAMonitor: sm},
		"More links than the link monitor.": {NumLinks: 3, LinkMonitor: lm, SLAMonitor: sm},
	}

	for name, config := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := strategy.New(strategy.KindGreedy, config)
			assert.Error(t, err)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := strategy.ParseKind("sla-mlo")
	assert.NoError(t, err)
	assert.Equal(t, strategy.KindSLAMLO, k)

	_, err = strategy.ParseKind("SLA")
	assert.ErrorIs(t, err, strategy.ErrUnknownKind)
}

func TestSelectLinkAlwaysInRange(t *testing.T) {
	for _, kind := range strategy.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			s, _ := newStrategy(t, kind, 3, qos.Config{Emergency: 1, Critical: 1}, nil)

			for i := 0; i < 300; i++ {
				flow := model.FlowID(i % 8)
				l := s.SelectLink(flow, false)
				require.True(t, l.Valid(3), "link %d out of range", l)

				ev := delivered(time.Duration(i)*time.Millisecond, flow, l, float64(1+i%7), 1000)
				ev.Success = i%5 != 0
				require.NoError(t, s.UpdateLinkMetrics(ev))
			}
		})
	}
}

func TestSelectLinkDoesNotCreateFlowRecords(t *testing.T) {
	for _, kind := range strategy.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			s, d := newStrategy(t, kind, 3, qos.Config{Emergency: 1, Critical: 1}, nil)
			for flowID := model.FlowID(0); flowID < 5; flowID++ {
				s.SelectLink(flowID, flowID < 2)
			}
			assert.Empty(t, d.sla.Flows())

			// The first outcome creates the record.
			require.NoError(t, s.UpdateLinkMetrics(delivered(0, 4, 0, 1, 100)))
			assert.Len(t, d.sla.Flows(), 1)
		})
	}
}

func TestRoundRobin(t *testing.T) {
	tests := map[string]struct {
		numLinks int
		flows    []model.FlowID
		exp      []model.LinkID
	}{
		"Three links should be visited once each in order.": {
			numLinks: 3,
			flows:    []model.FlowID{7, 0, 200},
			exp:      []model.LinkID{0, 1, 2},
		},

		"The cursor should wrap around.": {
			numLinks: 2,
			flows:    []model.FlowID{1, 1, 1, 1, 1},
			exp:      []model.LinkID{0, 1, 0, 1, 0},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s, _ := newStrategy(t, strategy.KindRoundRobin, test.numLinks, qos.Config{}, nil)

			var got []model.LinkID
			for _, f := range test.flows {
				got = append(got, s.SelectLink(f, true))
			}
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestGreedy(t *testing.T) {
	capacities := []float64{100e6, 300e6, 500e6}

	tests := map[string]struct {
		bytes   []uint32
		expLink model.LinkID
	}{
		"Without traffic the first link should be selected.": {
			bytes:   []uint32{0, 0, 0},
			expLink: 0,
		},

		"The link with the minimum normalized load should be selected.": {
			// Loads: 50%, 10% and 80%.
			bytes:   []uint32{6250000, 3750000, 50000000},
			expLink: 1,
		},

		"On a tie the lowest index should win.": {
			// Loads: 30%, 10% and 10%.
			bytes:   []uint32{3750000, 3750000, 6250000},
			expLink: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s, _ := newStrategy(t, strategy.KindGreedy, 3, qos.Config{}, capacities)
			for i, b := range test.bytes {
				if b == 0 {
					continue
				}
				require.NoError(t, s.UpdateLinkMetrics(delivered(0, 9, model.LinkID(i), 1, b)))
			}

			assert.Equal(t, test.expLink, s.SelectLink(9, false))
		})
	}
}

func TestGreedyDefaultCapacities(t *testing.T) {
	assert.Equal(t, 100e6, strategy.DefaultCapacity(0))
	assert.Equal(t, 300e6, strategy.DefaultCapacity(1))
	assert.Equal(t, 500e6, strategy.DefaultCapacity(2))

	// Same bytes on every link, the biggest default capacity has the lowest load.
	s, _ := newStrategy(t, strategy.KindGreedy, 3, qos.Config{}, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.UpdateLinkMetrics(delivered(0, 9, model.LinkID(i), 1, 1000)))
	}
	assert.Equal(t, model.LinkID(2), s.SelectLink(9, false))
}

func TestLinkUsage(t *testing.T) {
	assert := assert.New(t)

	s, _ := newStrategy(t, strategy.KindRoundRobin, 2, qos.Config{}, nil)
	assert.Equal([]float64{0, 0}, s.GetLinkUsage())
	assert.Equal([]float64{0, 0}, s.GetLinkThroughput())

	// A pending transmission and its outcome count once.
	pending := model.PacketEvent{FlowID: 3, LinkID: 0, DelayMs: model.PendingDelay, Bytes: 300}
	require.NoError(t, s.UpdateLinkMetrics(pending))
	require.NoError(t, s.UpdateLinkMetrics(delivered(time.Millisecond, 3, 0, 2, 300)))
	require.NoError(t, s.UpdateLinkMetrics(delivered(500*time.Millisecond, 3, 1, 2, 100)))
	require.NoError(t, s.UpdateLinkMetrics(delivered(time.Second, 3, 1, 2, 100000)))

	usage := s.GetLinkUsage()
	assert.InDeltaSlice([]float64{300.0 / 100400 * 100, 100100.0 / 100400 * 100}, usage, 1e-9)

	// Idempotent reads.
	assert.Equal(usage, s.GetLinkUsage())
	tp := s.GetLinkThroughput()
	assert.Equal(tp, s.GetLinkThroughput())
	assert.InDelta((100+100000)*8/(0.5*1e6), tp[1], 1e-9)
}

func TestUpdateLinkMetricsForwardsToMonitors(t *testing.T) {
	assert := assert.New(t)

	s, d := newStrategy(t, strategy.KindRoundRobin, 2, qos.Config{Emergency: 1}, nil)

	// Pending events don't reach the SLA monitor.
	require.NoError(t, s.UpdateLinkMetrics(model.PacketEvent{FlowID: 0, LinkID: 1, DelayMs: model.PendingDelay, Bytes: 10}))
	_, ok := d.sla.Flow(0)
	assert.False(ok)

	require.NoError(t, s.UpdateLinkMetrics(delivered(0, 0, 1, 2, 10)))
	f, ok := d.sla.Flow(0)
	require.True(t, ok)
	assert.Equal(map[string]uint64{"RoundRobin": 1}, f.PacketsBySource)
	assert.Equal(model.Measured(100), d.sla.Deviation(0))

	// The emergency flow is classified as critical for the link monitor.
	assert.Equal(model.Measured(1), d.links.CriticalPDR())
	assert.Equal(model.NoData, d.links.NonCriticalPDR())

	// Duplicates only reach the link monitor.
	dup := delivered(0, 0, 0, 2, 10)
	dup.Duplicate = true
	require.NoError(t, s.UpdateLinkMetrics(dup))
	f, _ = d.sla.Flow(0)
	assert.Equal(uint64(1), f.TotalPackets)
	snap, _ := d.links.Snapshot(0)
	assert.Equal(uint64(1), snap.DuplicatesRx)

	// Invalid events are rejected.
	err := s.UpdateLinkMetrics(delivered(0, 0, 5, 2, 10))
	assert.ErrorIs(err, model.ErrInvalidLink)
}

func TestReliabilityFallbackRotation(t *testing.T) {
	s, _ := newStrategy(t, strategy.KindReliability, 3, qos.Config{}, nil)

	var got []model.LinkID
	for i := 0; i < 4; i++ {
		got = append(got, s.SelectLink(1, false))
	}
	assert.Equal(t, []model.LinkID{2, 1, 0, 2}, got)
}

func TestReliabilityPrefersReliableLinks(t *testing.T) {
	tests := map[string]struct {
		flowID   model.FlowID
		critical bool
		prepare  func(t *testing.T, s strategy.Strategy)
		expLink  model.LinkID
	}{
		"A lossy link should be avoided by a normal flow.": {
			flowID: 9,
			prepare: func(t *testing.T, s strategy.Strategy) {
				for i := 0; i < 20; i++ {
					at := time.Duration(i) * time.Millisecond
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 9, 0, 2, 100)))
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 9, 1, 2, 100)))
					ev := delivered(at, 9, 2, 2, 100)
					ev.Success = i%2 == 0
					require.NoError(t, s.UpdateLinkMetrics(ev))
				}
			},
			// Link 0 and 1 have perfect PDR, link 1 has the better base weight.
			expLink: 1,
		},

		"A slow link should be avoided by an emergency flow.": {
			flowID: 0,
			prepare: func(t *testing.T, s strategy.Strategy) {
				for i := 0; i < 20; i++ {
					at := time.Duration(i) * time.Millisecond
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 0, 0, 0.2, 100)))
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 0, 1, 30, 100)))
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 0, 2, 30, 100)))
				}
			},
			expLink: 0,
		},

		"The explicit critical flag should score with the critical thresholds.": {
			flowID:   9,
			critical: true,
			prepare: func(t *testing.T, s strategy.Strategy) {
				for i := 0; i < 20; i++ {
					at := time.Duration(i) * time.Millisecond
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 9, 0, 0.5, 100)))
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 9, 1, 45, 100)))
					require.NoError(t, s.UpdateLinkMetrics(delivered(at, 9, 2, 45, 100)))
				}
			},
			expLink: 0,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s, _ := newStrategy(t, strategy.KindReliability, 3, qos.Config{Emergency: 1}, nil)
			test.prepare(t, s)
			assert.Equal(t, test.expLink, s.SelectLink(test.flowID, test.critical))
		})
	}
}

func TestSLAMLOUniformWithoutBreach(t *testing.T) {
	s, _ := newStrategy(t, strategy.KindSLAMLO, 3, qos.Config{}, nil)

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[s.SelectLink(5, false)]++
	}

	for _, c := range counts {
		assert.InDelta(t, 1000, c, 150)
	}
}

func TestSLAMLOAvoidsSlowLinks(t *testing.T) {
	s, _ := newStrategy(t, strategy.KindSLAMLO, 3, qos.Config{Emergency: 1}, nil)

	// Emergency flow, 1ms threshold: link 0 always breaching, link 1 fast.
	for i := 0; i < 10; i++ {
		at := time.Duration(i) * time.Millisecond
		require.NoError(t, s.UpdateLinkMetrics(delivered(at, 0, 0, 5, 100)))
		require.NoError(t, s.UpdateLinkMetrics(delivered(at, 0, 1, 0.5, 100)))
	}

	for i := 0; i < 500; i++ {
		assert.NotEqual(t, model.LinkID(0), s.SelectLink(0, true))
	}
}
