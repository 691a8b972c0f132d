package sla

import (
	"fmt"
	"time"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/window"
	"github.com/mlolab/mloeval/internal/qos"
)

const (
	// MinDelayMs is the floor applied to every delivered packet delay.
	MinDelayMs = 0.1
	// IntervalLength is the length of the error accounting intervals.
	IntervalLength = time.Second
	// WindowErrorHistorySize is the number of compliance window results kept.
	WindowErrorHistorySize = 100
	// IntervalErrorHistorySize is the number of interval results kept.
	IntervalErrorHistorySize = 10
)

// FlowSnapshot is a point in time copy of the SLA metrics of a flow.
type FlowSnapshot struct {
	FlowID   model.FlowID
	Tier     model.Tier
	Contract model.SLAContract

	TotalPackets      uint64
	ExceedingPackets  uint64
	DelayMeasurements uint64
	TotalDelayMs      float64
	AvgDelayMs        model.Measurement

	// ComplianceBuffered is the number of outcomes waiting in the compliance window.
	ComplianceBuffered int
	WindowErrors       []float64
	MovingAvgError     model.Measurement
	IntervalErrors     []float64

	PacketsBySource map[string]uint64
	Deviation       model.Measurement
}

type flowMetrics struct {
	id       model.FlowID
	tier     model.Tier
	contract model.SLAContract

	total, exceeding uint64
	measurements     uint64
	totalDelay       float64

	compliance     *window.FIFO[bool]
	windowErrors   *window.FIFO[float64]
	movingAvgError model.Measurement

	intervalStarted   bool
	intervalStart     time.Duration
	intervalTotal     uint64
	intervalExceeding uint64
	intervalErrors    *window.FIFO[float64]

	sources map[string]uint64
}

func newFlowMetrics(id model.FlowID, tier model.Tier, c model.SLAContract) *flowMetrics {
	return &flowMetrics{
		id:             id,
		tier:           tier,
		contract:       c,
		compliance:     window.New[bool](c.PacketWindow),
		windowErrors:   window.New[float64](WindowErrorHistorySize),
		intervalErrors: window.New[float64](IntervalErrorHistorySize),
		sources:        map[string]uint64{},
	}
}

func (f *flowMetrics) avgDelay() model.Measurement {
	if f.measurements == 0 {
		return model.NoData
	}
	return model.Measured(f.totalDelay / float64(f.measurements))
}

func (f *flowMetrics) deviation() model.Measurement {
	avg := f.avgDelay()
	if !avg.OK {
		return model.NoData
	}

	thr := f.contract.DelayThreshold
	if avg.Value <= thr {
		return model.Measured(0)
	}
	return model.Measured((avg.Value - thr) / thr * 100)
}

func (f *flowMetrics) foldInterval(now time.Duration) {
	if !f.intervalStarted {
		f.intervalStarted = true
		f.intervalStart = now
		return
	}

	if now-f.intervalStart < IntervalLength {
		return
	}

	if f.intervalTotal > 0 {
		f.intervalErrors.Push(float64(f.intervalExceeding) / float64(f.intervalTotal) * 100)
	}
	f.intervalTotal, f.intervalExceeding = 0, 0
	f.intervalStart = now
}

func (f *flowMetrics) recordCompliance(compliant bool) {
	f.compliance.Push(compliant)
	if !f.compliance.Full() {
		return
	}

	bad := 0
	for i := 0; i < f.compliance.Len(); i++ {
		if !f.compliance.At(i) {
			bad++
		}
	}
	f.windowErrors.Push(float64(bad) / float64(f.compliance.Len()) * 100)

	sum := 0.0
	for i := 0; i < f.windowErrors.Len(); i++ {
		sum += f.windowErrors.At(i)
	}
	f.movingAvgError = model.Measured(sum / float64(f.windowErrors.Len()))

	f.compliance.Pop()
}

func (f *flowMetrics) snapshot() FlowSnapshot {
	sources := make(map[string]uint64, len(f.sources))
	for k, v := range f.sources {
		sources[k] = v
	}

	return FlowSnapshot{
		FlowID:             f.id,
		Tier:               f.tier,
		Contract:           f.contract,
		TotalPackets:       f.total,
		ExceedingPackets:   f.exceeding,
		DelayMeasurements:  f.measurements,
		TotalDelayMs:       f.totalDelay,
		AvgDelayMs:         f.avgDelay(),
		ComplianceBuffered: f.compliance.Len(),
		WindowErrors:       f.windowErrors.Values(),
		MovingAvgError:     f.movingAvgError,
		IntervalErrors:     f.intervalErrors.Values(),
		PacketsBySource:    sources,
		Deviation:          f.deviation(),
	}
}

// MonitorConfig is the Monitor configuration.
type MonitorConfig struct {
	QoS    qos.Config
	Logger log.Logger
}

func (c *MonitorConfig) defaults() error {
	if c.QoS.Emergency < 0 || c.QoS.Critical < 0 {
		return fmt.Errorf("tier flow counts can't be negative")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "monitor.SLA"})

	return nil
}

// Monitor tracks the SLA compliance of every flow against its contract.
// It is not safe for concurrent use.
type Monitor struct {
	qos    qos.Config
	flows  [model.MaxFlowID + 1]*flowMetrics
	logger log.Logger
}

// NewMonitor returns a new SLA deviation monitor.
func NewMonitor(config MonitorConfig) (*Monitor, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Monitor{
		qos:    config.QoS,
		logger: config.Logger,
	}, nil
}

// SetFlowContract assigns the tier contract to a flow on first use. Later calls
// return the already assigned contract.
func (m *Monitor) SetFlowContract(flowID model.FlowID) (model.SLAContract, error) {
	f, err := m.flow(flowID)
	if err != nil {
		return model.SLAContract{}, err
	}
	return f.contract, nil
}

// FlowContract returns the contract of a flow without creating its record. Flows
// without a record get the contract of their tier.
func (m *Monitor) FlowContract(flowID model.FlowID) (model.SLAContract, error) {
	if !flowID.Valid() {
		return model.SLAContract{}, fmt.Errorf("flow %d: %w", flowID, model.ErrInvalidFlow)
	}

	if f := m.flows[flowID]; f != nil {
		return f.contract, nil
	}
	return model.ContractForTier(m.qos.Classify(flowID).Tier), nil
}

// OverrideFlowContract assigns an explicit catalog contract to a flow and resets its metrics.
func (m *Monitor) OverrideFlowContract(flowID model.FlowID, contractName string) error {
	if !flowID.Valid() {
		return fmt.Errorf("flow %d: %w", flowID, model.ErrInvalidFlow)
	}

	c, err := model.ContractByName(contractName)
	if err != nil {
		return err
	}

	tier := m.qos.Classify(flowID).Tier
	m.flows[flowID] = newFlowMetrics(flowID, tier, c)
	m.logger.Debugf("flow %d contract overridden with %s", flowID, c.Name)

	return nil
}

func (m *Monitor) flow(flowID model.FlowID) (*flowMetrics, error) {
	if !flowID.Valid() {
		return nil, fmt.Errorf("flow %d: %w", flowID, model.ErrInvalidFlow)
	}

	f := m.flows[flowID]
	if f == nil {
		tier := m.qos.Classify(flowID).Tier
		c := model.ContractForTier(tier)
		f = newFlowMetrics(flowID, tier, c)
		m.flows[flowID] = f
		m.logger.Debugf("flow %d (%s) assigned to %s contract", flowID, tier, c.Name)
	}

	return f, nil
}

// UpdateFlowMetrics applies a packet outcome to a flow. source identifies who reported it.
func (m *Monitor) UpdateFlowMetrics(flowID model.FlowID, success bool, delayMs float64, now time.Duration, source string) error {
	if success && (delayMs < 0 || delayMs > model.MaxDelayMs) {
		return fmt.Errorf("delay %gms: %w", delayMs, model.ErrInvalidDelay)
	}

	f, err := m.flow(flowID)
	if err != nil {
		return err
	}

	f.foldInterval(now)
	f.total++
	f.intervalTotal++
	f.sources[source]++

	compliant := false
	if success {
		d := delayMs
		if d < MinDelayMs {
			d = MinDelayMs
		}
		f.totalDelay += d
		f.measurements++
		compliant = d <= f.contract.DelayThreshold
	}

	if !compliant {
		f.exceeding++
		f.intervalExceeding++
	}

	f.recordCompliance(compliant)

	return nil
}

// Deviation returns how much the flow average delay exceeds its contract threshold in
// percent. NoData is returned for unknown flows or flows without delay measurements.
func (m *Monitor) Deviation(flowID model.FlowID) model.Measurement {
	if !flowID.Valid() || m.flows[flowID] == nil {
		return model.NoData
	}
	return m.flows[flowID].deviation()
}

func (m *Monitor) averageDeviation(match func(*flowMetrics) bool) model.Measurement {
	sum := 0.0
	n := 0
	for _, f := range m.flows {
		if f == nil || !match(f) {
			continue
		}
		d := f.deviation()
		if !d.OK {
			continue
		}
		sum += d.Value
		n++
	}

	if n == 0 {
		return model.NoData
	}
	return model.Measured(sum / float64(n))
}

// OverallDeviation averages the deviation of every flow with data.
func (m *Monitor) OverallDeviation() model.Measurement {
	return m.averageDeviation(func(*flowMetrics) bool { return true })
}

// TierDeviation averages the deviation of the tier flows with data.
func (m *Monitor) TierDeviation(tier model.Tier) model.Measurement {
	return m.averageDeviation(func(f *flowMetrics) bool { return f.tier == tier })
}

// ContractDeviation averages the deviation of the flows with data under a contract.
func (m *Monitor) ContractDeviation(contractName string) model.Measurement {
	return m.averageDeviation(func(f *flowMetrics) bool { return f.contract.Name == contractName })
}

// Flow returns the SLA metrics of a flow.
func (m *Monitor) Flow(flowID model.FlowID) (FlowSnapshot, bool) {
	if !flowID.Valid() || m.flows[flowID] == nil {
		return FlowSnapshot{}, false
	}
	return m.flows[flowID].snapshot(), true
}

// Flows returns the SLA metrics of every observed flow ordered by ID.
func (m *Monitor) Flows() []FlowSnapshot {
	var fs []FlowSnapshot
	for _, f := range m.flows {
		if f != nil {
			fs = append(fs, f.snapshot())
		}
	}
	return fs
}
