package strategy

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/qos"
)

// Strategy selects the link of every packet and feeds the packet outcomes to the monitors.
type Strategy interface {
	Name() string
	// SelectLink returns the link for the next packet of a flow. It never returns an
	// ID outside [0, N) and works before any metric exists.
	SelectLink(flowID model.FlowID, critical bool) model.LinkID
	// UpdateLinkMetrics applies a pending or outcome packet event.
	UpdateLinkMetrics(ev model.PacketEvent) error
	// GetLinkUsage returns the per link share of the transmitted bytes in percent.
	GetLinkUsage() []float64
	// GetLinkThroughput returns the per link sliding window throughput in Mbps.
	GetLinkThroughput() []float64
}

// LinkMonitor is the link quality source used by the strategies.
type LinkMonitor interface {
	NumLinks() int
	Update(ev model.PacketEvent) (*link.Transition, error)
	Snapshot(id model.LinkID) (link.Snapshot, bool)
	Throughput(id model.LinkID) float64
}

// SLAMonitor is the flow SLA tracker used by the strategies.
type SLAMonitor interface {
	// FlowContract returns the flow contract, flow records are only created by the events.
	FlowContract(flowID model.FlowID) (model.SLAContract, error)
	UpdateFlowMetrics(flowID model.FlowID, success bool, delayMs float64, now time.Duration, source string) error
}

// Kind is the kind of a strategy.
type Kind string

const (
	KindRoundRobin  Kind = "round-robin"
	KindGreedy      Kind = "greedy"
	KindReliability Kind = "reliability"
	KindSLAMLO      Kind = "sla-mlo"
)

// Kinds returns all the available strategy kinds.
func Kinds() []Kind { return []Kind{KindRoundRobin, KindGreedy, KindReliability, KindSLAMLO} }

// ErrUnknownKind is used when a strategy kind doesn't exist.
var ErrUnknownKind = fmt.Errorf("unknown strategy kind")

// ParseKind returns the kind with the name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Config is the configuration shared by all the strategies.
type Config struct {
	NumLinks    int
	QoS         qos.Config
	LinkMonitor LinkMonitor
	SLAMonitor  SLAMonitor
	// Capacities are the nominal link capacities in bit/s, only used by the greedy strategy.
	// Missing entries get the default capacity.
	Capacities []float64
	// Rand is the randomness source of the probabilistic strategies.
	Rand   *rand.Rand
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.NumLinks < 1 {
		return fmt.Errorf("at least one link is required")
	}

	if c.LinkMonitor == nil {
		return fmt.Errorf("link monitor is required")
	}

	if n := c.LinkMonitor.NumLinks(); n != c.NumLinks {
		return fmt.Errorf("link monitor has %d links, strategy %d", n, c.NumLinks)
	}

	if c.SLAMonitor == nil {
		return fmt.Errorf("SLA monitor is required")
	}

	if len(c.Capacities) > c.NumLinks {
		return fmt.Errorf("%d capacities for %d links", len(c.Capacities), c.NumLinks)
	}
	caps := make([]float64, c.NumLinks)
	for i := range caps {
		caps[i] = DefaultCapacity(model.LinkID(i))
		if i < len(c.Capacities) && c.Capacities[i] > 0 {
			caps[i] = c.Capacities[i]
		}
	}
	c.Capacities = caps

	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// New returns the strategy of the kind.
func New(kind Kind, config Config) (Strategy, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Logger = config.Logger.WithValues(log.Kv{"svc": "strategy", "strategy": string(kind)})

	switch kind {
	case KindRoundRobin:
		return newRoundRobin(config), nil
	case KindGreedy:
		return newGreedy(config), nil
	case KindReliability:
		return newReliability(config), nil
	case KindSLAMLO:
		return newSLAMLO(config), nil
	}

	return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
}

// tracker has the behaviour shared by every strategy: forwarding the events to the
// monitors and accounting the per link byte load.
type tracker struct {
	name     string
	numLinks int
	qos      qos.Config
	linkMon  LinkMonitor
	slaMon   SLAMonitor
	logger   log.Logger

	bytes    []uint64
	inFlight []uint64
}

func newTracker(name string, config Config) *tracker {
	return &tracker{
		name:     name,
		numLinks: config.NumLinks,
		qos:      config.QoS,
		linkMon:  config.LinkMonitor,
		slaMon:   config.SLAMonitor,
		logger:   config.Logger,
		bytes:    make([]uint64, config.NumLinks),
		inFlight: make([]uint64, config.NumLinks),
	}
}

func (t *tracker) Name() string { return t.name }

func (t *tracker) tier(flowID model.FlowID, critical bool) model.Tier {
	tier := t.qos.Classify(flowID).Tier
	if critical && tier == model.TierNormal {
		return model.TierCritical
	}
	return tier
}

// UpdateLinkMetrics forwards the event to the link monitor and, for outcomes, to the SLA
// monitor. The load is counted once per transmission attempt. Duplicated copies aren't
// reported to the SLA monitor, the original packet already accounts for the flow.
func (t *tracker) UpdateLinkMetrics(ev model.PacketEvent) error {
	ev.Critical = ev.Critical || t.qos.Classify(ev.FlowID).Critical

	_, err := t.linkMon.Update(ev)
	if err != nil {
		return fmt.Errorf("could not update link metrics: %w", err)
	}

	l := ev.LinkID
	if ev.Pending() {
		t.bytes[l] += uint64(ev.Bytes)
		t.inFlight[l]++
		return nil
	}

	if t.inFlight[l] > 0 {
		t.inFlight[l]--
	} else {
		t.bytes[l] += uint64(ev.Bytes)
	}

	if ev.Duplicate {
		return nil
	}

	err = t.slaMon.UpdateFlowMetrics(ev.FlowID, ev.Success, ev.DelayMs, ev.At, t.name)
	if err != nil {
		return fmt.Errorf("could not update flow SLA metrics: %w", err)
	}

	return nil
}

func (t *tracker) GetLinkUsage() []float64 {
	usage := make([]float64, t.numLinks)

	var total uint64
	for _, b := range t.bytes {
		total += b
	}
	if total == 0 {
		return usage
	}

	for i, b := range t.bytes {
		usage[i] = float64(b) / float64(total) * 100
	}
	return usage
}

func (t *tracker) GetLinkThroughput() []float64 {
	tp := make([]float64, t.numLinks)
	for i := range tp {
		tp[i] = t.linkMon.Throughput(model.LinkID(i))
	}
	return tp
}
