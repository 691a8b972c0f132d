package link

import (
	"fmt"
	"time"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/model"
)

// DefaultPDRThreshold is the windowed PDR under which a link is considered failing.
const DefaultPDRThreshold = 0.95

// MonitorConfig is the Monitor configuration.
type MonitorConfig struct {
	NumLinks     int
	PDRThreshold float64
	// OnTransition is called for every link state change, optional.
	OnTransition func(Transition)
	Logger       log.Logger
}

func (c *MonitorConfig) defaults() error {
	if c.NumLinks < 1 {
		return fmt.Errorf("at least one link is required")
	}

	if c.PDRThreshold == 0 {
		c.PDRThreshold = DefaultPDRThreshold
	}

	if c.PDRThreshold < 0 || c.PDRThreshold > 1 {
		return fmt.Errorf("PDR threshold must be in (0, 1], got %v", c.PDRThreshold)
	}

	if c.OnTransition == nil {
		c.OnTransition = func(Transition) {}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "monitor.Link"})

	return nil
}

// Monitor tracks the quality of every link and detects failure and recovery episodes.
// It is not safe for concurrent use, the simulation loop is its single owner.
type Monitor struct {
	links        []*linkMetrics
	threshold    float64
	onTransition func(Transition)
	logger       log.Logger
}

// NewMonitor returns a new link quality monitor.
func NewMonitor(config MonitorConfig) (*Monitor, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Monitor{
		links:        make([]*linkMetrics, config.NumLinks),
		threshold:    config.PDRThreshold,
		onTransition: config.OnTransition,
		logger:       config.Logger,
	}, nil
}

// NumLinks returns the number of monitored links.
func (m *Monitor) NumLinks() int { return len(m.links) }

// PDRThreshold returns the failure detection threshold.
func (m *Monitor) PDRThreshold() float64 { return m.threshold }

// Update applies a packet event. Invalid events are rejected without any change.
// A pending event only records the transmission attempt, the outcome event of the
// same packet completes it. The returned transition is nil when the link state didn't change.
func (m *Monitor) Update(ev model.PacketEvent) (*Transition, error) {
	err := ev.Validate(len(m.links))
	if err != nil {
		return nil, fmt.Errorf("invalid packet event: %w", err)
	}

	l := m.links[ev.LinkID]
	if l == nil {
		l = newLinkMetrics(ev.LinkID)
		m.links[ev.LinkID] = l
	}

	if ev.Pending() {
		m.countAttempt(l, ev)
		l.inFlight++
		return nil, nil
	}

	if l.inFlight > 0 {
		l.inFlight--
	} else {
		m.countAttempt(l, ev)
	}

	l.outcomes.Push(ev.Success)
	tier := l.tier(ev.Critical)

	if ev.Success {
		l.rx++
		l.bytesRx += uint64(ev.Bytes)
		tier.Rx++
		if ev.DelayMs > 0 {
			l.recordDelay(ev.Critical, ev.DelayMs)
		}
		if ev.Bytes > 0 {
			l.recordThroughput(ev.At, ev.Bytes)
		}
		if ev.Duplicate {
			l.dupRx++
		}
	} else {
		l.dropped++
		if ev.Duplicate {
			l.dupTx++
		}
	}

	t := m.evaluateState(l, ev.At)
	if t != nil {
		m.onTransition(*t)
	}

	return t, nil
}

func (m *Monitor) countAttempt(l *linkMetrics, ev model.PacketEvent) {
	l.tx++
	l.bytesTx += uint64(ev.Bytes)
	l.tier(ev.Critical).Tx++
}

func (m *Monitor) evaluateState(l *linkMetrics, now time.Duration) *Transition {
	wpdr := l.windowPDR()
	if !wpdr.OK {
		return nil
	}

	switch l.state {
	case StateNormal:
		if wpdr.Value >= m.threshold || l.outcomes.Len() < MinFailureSamples {
			return nil
		}
		l.state = StateFailing
		l.failureStart = now
		l.failures++
		m.logger.Warningf("link %d failing at %s: windowed PDR %.3f below %.3f", l.id, now, wpdr.Value, m.threshold)
		return &Transition{LinkID: l.id, Kind: TransitionFailure, At: now, WindowPDR: wpdr.Value}

	case StateFailing:
		if wpdr.Value < m.threshold {
			return nil
		}
		recovery := now - l.failureStart
		l.state = StateNormal
		l.recoveries++
		l.recoveryTimes = append(l.recoveryTimes, recovery)
		m.logger.Infof("link %d recovered at %s after %s", l.id, now, recovery)
		return &Transition{LinkID: l.id, Kind: TransitionRecovery, At: now, WindowPDR: wpdr.Value, RecoveryTime: recovery}
	}

	return nil
}

// Snapshot returns the metrics of a link. False is returned for IDs out of range.
func (m *Monitor) Snapshot(id model.LinkID) (Snapshot, bool) {
	if !id.Valid(len(m.links)) {
		return Snapshot{}, false
	}

	l := m.links[id]
	if l == nil {
		return Snapshot{LinkID: id}, true
	}
	return l.snapshot(), true
}

// Snapshots returns the metrics of every link ordered by ID.
func (m *Monitor) Snapshots() []Snapshot {
	snaps := make([]Snapshot, 0, len(m.links))
	for i := range m.links {
		s, _ := m.Snapshot(model.LinkID(i))
		snaps = append(snaps, s)
	}
	return snaps
}

// Throughput returns the sliding window throughput in Mbps of a link.
func (m *Monitor) Throughput(id model.LinkID) float64 {
	if !id.Valid(len(m.links)) || m.links[id] == nil {
		return 0
	}
	return m.links[id].throughputV
}

func (m *Monitor) sumTiers(critical bool) TierStats {
	var total TierStats
	for _, l := range m.links {
		if l == nil {
			continue
		}
		t := l.tier(critical)
		total.Tx += t.Tx
		total.Rx += t.Rx
		total.DelaySumMs += t.DelaySumMs
		total.DelaySamples += t.DelaySamples
	}
	return total
}

func meanDelay(t TierStats) model.Measurement {
	if t.DelaySamples == 0 {
		return model.NoData
	}
	return model.Measured(t.DelaySumMs / float64(t.DelaySamples))
}

// CriticalPDR returns the delivery ratio of the critical traffic on all the links.
func (m *Monitor) CriticalPDR() model.Measurement { return m.sumTiers(true).PDR() }

// NonCriticalPDR returns the delivery ratio of the non critical traffic on all the links.
func (m *Monitor) NonCriticalPDR() model.Measurement { return m.sumTiers(false).PDR() }

// CriticalAvgDelay returns the mean delay of the delivered critical traffic.
func (m *Monitor) CriticalAvgDelay() model.Measurement { return meanDelay(m.sumTiers(true)) }

// NonCriticalAvgDelay returns the mean delay of the delivered non critical traffic.
func (m *Monitor) NonCriticalAvgDelay() model.Measurement { return meanDelay(m.sumTiers(false)) }

// OverallPDR returns the delivery ratio of all the traffic.
func (m *Monitor) OverallPDR() model.Measurement {
	var tx, rx uint64
	for _, l := range m.links {
		if l == nil {
			continue
		}
		tx += l.tx
		rx += l.rx
	}
	if tx == 0 {
		return model.NoData
	}
	return model.Measured(float64(rx) / float64(tx))
}

// AverageRecoveryTime averages every recovery of every link, 0 when none happened.
func (m *Monitor) AverageRecoveryTime() time.Duration {
	var total time.Duration
	n := 0
	for _, l := range m.links {
		if l == nil {
			continue
		}
		for _, r := range l.recoveryTimes {
			total += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// FailureCount returns the failures of all the links.
func (m *Monitor) FailureCount() int {
	n := 0
	for _, l := range m.links {
		if l != nil {
			n += l.failures
		}
	}
	return n
}

// RecoveryCount returns the recoveries of all the links.
func (m *Monitor) RecoveryCount() int {
	n := 0
	for _, l := range m.links {
		if l != nil {
			n += l.recoveries
		}
	}
	return n
}
