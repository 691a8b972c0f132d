package link

import (
	"time"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/window"
)

const (
	// OutcomeWindowSize is the number of recent outcomes used for the windowed PDR.
	OutcomeWindowSize = 50
	// MinFailureSamples is the number of outcomes the window needs before a link can fail.
	MinFailureSamples = 10
	// DelayHistorySize is the number of delay samples used for the jitter.
	DelayHistorySize = 100
	// EWMAAlpha is the smoothing factor of the average delays.
	EWMAAlpha = 0.125
	// ThroughputWindow is the sliding window of the throughput.
	ThroughputWindow = time.Second
)

// State is the failure detection state of a link.
type State int

const (
	StateNormal State = iota
	StateFailing
)

func (s State) String() string {
	if s == StateFailing {
		return "failing"
	}
	return "normal"
}

// TransitionKind is the kind of a link state change.
type TransitionKind string

const (
	TransitionFailure  TransitionKind = "failure"
	TransitionRecovery TransitionKind = "recovery"
)

// Transition is a link state change detected while updating the metrics.
type Transition struct {
	LinkID model.LinkID
	Kind   TransitionKind
	At     time.Duration
	// WindowPDR is the windowed PDR that triggered the transition.
	WindowPDR float64
	// RecoveryTime is only set on recoveries.
	RecoveryTime time.Duration
}

// TierStats are the counters of the critical or the non critical traffic of a link.
type TierStats struct {
	Tx           uint64
	Rx           uint64
	DelaySumMs   float64
	DelaySamples uint64
	// AvgDelayMs is the EWMA of the tier delays.
	AvgDelayMs model.Measurement
}

// PDR returns the tier delivery ratio.
func (t TierStats) PDR() model.Measurement {
	if t.Tx == 0 {
		return model.NoData
	}
	return model.Measured(float64(t.Rx) / float64(t.Tx))
}

// Snapshot is a point in time copy of the metrics of a link.
type Snapshot struct {
	LinkID   model.LinkID
	Observed bool

	Tx       uint64
	Rx       uint64
	Dropped  uint64
	InFlight uint64
	BytesTx  uint64
	BytesRx  uint64

	PDR           model.Measurement
	WindowPDR     model.Measurement
	WindowSamples int

	AvgDelayMs     model.Measurement
	JitterMs       model.Measurement
	ThroughputMbps float64

	State         State
	FailureStart  time.Duration
	Failures      int
	Recoveries    int
	RecoveryTimes []time.Duration

	DuplicatesTx uint64
	DuplicatesRx uint64

	Critical    TierStats
	NonCritical TierStats
}

type throughputSample struct {
	at    time.Duration
	bytes uint32
}

type linkMetrics struct {
	id model.LinkID

	tx, rx, dropped, inFlight uint64
	bytesTx, bytesRx          uint64

	outcomes *window.FIFO[bool]

	avgDelay    model.Measurement
	delays      *window.FIFO[float64]
	jitter      model.Measurement
	throughput  *window.FIFO[throughputSample]
	throughputV float64

	state         State
	failureStart  time.Duration
	failures      int
	recoveries    int
	recoveryTimes []time.Duration

	dupTx, dupRx uint64

	critical    TierStats
	nonCritical TierStats
}

func newLinkMetrics(id model.LinkID) *linkMetrics {
	return &linkMetrics{
		id:       id,
		outcomes: window.New[bool](OutcomeWindowSize),
		delays:   window.New[float64](DelayHistorySize),
		// Bounded only by the event rate, grown on demand.
		throughput: window.New[throughputSample](1024),
	}
}

func (l *linkMetrics) tier(critical bool) *TierStats {
	if critical {
		return &l.critical
	}
	return &l.nonCritical
}

func (l *linkMetrics) windowPDR() model.Measurement {
	n := l.outcomes.Len()
	if n == 0 {
		return model.NoData
	}

	ok := 0
	for i := 0; i < n; i++ {
		if l.outcomes.At(i) {
			ok++
		}
	}
	return model.Measured(float64(ok) / float64(n))
}

func (l *linkMetrics) pdr() model.Measurement {
	if l.tx == 0 {
		return model.NoData
	}
	return model.Measured(float64(l.rx) / float64(l.tx))
}

func ewma(avg model.Measurement, sample float64) model.Measurement {
	if !avg.OK {
		return model.Measured(sample)
	}
	return model.Measured(EWMAAlpha*sample + (1-EWMAAlpha)*avg.Value)
}

func (l *linkMetrics) recordDelay(critical bool, d float64) {
	t := l.tier(critical)
	t.DelaySumMs += d
	t.DelaySamples++
	t.AvgDelayMs = ewma(t.AvgDelayMs, d)

	l.avgDelay = ewma(l.avgDelay, d)

	l.delays.Push(d)
	n := l.delays.Len()
	if n < 2 {
		l.jitter = model.NoData
		return
	}

	sum := 0.0
	prev := l.delays.At(0)
	for i := 1; i < n; i++ {
		cur := l.delays.At(i)
		diff := cur - prev
		if diff < 0 {
			diff = -diff
		}
		sum += diff
		prev = cur
	}
	l.jitter = model.Measured(sum / float64(n-1))
}

func (l *linkMetrics) recordThroughput(at time.Duration, bytes uint32) {
	if l.throughput.Full() {
		grown := window.New[throughputSample](l.throughput.Cap() * 2)
		for _, s := range l.throughput.Values() {
			grown.Push(s)
		}
		l.throughput = grown
	}
	l.throughput.Push(throughputSample{at: at, bytes: bytes})

	for {
		oldest, ok := l.throughput.Oldest()
		if !ok || at-oldest.at <= ThroughputWindow {
			break
		}
		l.throughput.Pop()
	}

	// Samples at a single instant, like the first one after an idle gap, are measured
	// over the whole window so a stale value is never kept.
	first, _ := l.throughput.Oldest()
	span := at - first.at
	if span <= 0 {
		span = ThroughputWindow
	}

	var total uint64
	for i := 0; i < l.throughput.Len(); i++ {
		total += uint64(l.throughput.At(i).bytes)
	}
	l.throughputV = float64(total) * 8 / (span.Seconds() * 1e6)
}

func (l *linkMetrics) snapshot() Snapshot {
	return Snapshot{
		LinkID:         l.id,
		Observed:       true,
		Tx:             l.tx,
		Rx:             l.rx,
		Dropped:        l.dropped,
		InFlight:       l.inFlight,
		BytesTx:        l.bytesTx,
		BytesRx:        l.bytesRx,
		PDR:            l.pdr(),
		WindowPDR:      l.windowPDR(),
		WindowSamples:  l.outcomes.Len(),
		AvgDelayMs:     l.avgDelay,
		JitterMs:       l.jitter,
		ThroughputMbps: l.throughputV,
		State:          l.state,
		FailureStart:   l.failureStart,
		Failures:       l.failures,
		Recoveries:     l.recoveries,
		RecoveryTimes:  append([]time.Duration(nil), l.recoveryTimes...),
		DuplicatesTx:   l.dupTx,
		DuplicatesRx:   l.dupRx,
		Critical:       l.critical,
		NonCritical:    l.nonCritical,
	}
}
