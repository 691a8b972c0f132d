package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/metrics"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/qos"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/strategy"
)

const (
	DefaultCriticalInterval = 10 * time.Millisecond
	DefaultNormalInterval   = 25 * time.Millisecond
	DefaultLossTimeout      = 100 * time.Millisecond
	DefaultPayloadBytes     = 1000
)

// DriverConfig is the Driver configuration.
type DriverConfig struct {
	RunID       string
	Strategy    strategy.Strategy
	LinkMonitor *link.Monitor
	SLAMonitor  *sla.Monitor
	Channel     *ChannelModel
	QoS         qos.Config
	NumFlows    int
	Duration    time.Duration
	// CriticalInterval and NormalInterval are the packet intervals of each flow kind.
	CriticalInterval time.Duration
	NormalInterval   time.Duration
	PayloadBytes     uint32
	// LossTimeout is when a lost packet outcome is reported after its transmission.
	LossTimeout time.Duration
	// DuplicateCritical sends a copy of every critical packet on the next link.
	DuplicateCritical bool
	// ReportInterval disables the periodic summaries when 0.
	ReportInterval  time.Duration
	Reporter        report.Reporter
	MetricsRecorder metrics.Recorder
	Logger          log.Logger
}

func (c *DriverConfig) defaults() error {
	if c.Strategy == nil {
		return fmt.Errorf("strategy is required")
	}

	if c.LinkMonitor == nil || c.SLAMonitor == nil {
		return fmt.Errorf("link and SLA monitors are required")
	}

	if c.Channel == nil {
		return fmt.Errorf("channel model is required")
	}

	if c.Channel.NumLinks() != c.LinkMonitor.NumLinks() {
		return fmt.Errorf("channel has %d links and monitor %d", c.Channel.NumLinks(), c.LinkMonitor.NumLinks())
	}

	if c.NumFlows < 1 || c.NumFlows > int(model.MaxFlowID)+1 {
		return fmt.Errorf("flows must be in [1, %d], got %d", int(model.MaxFlowID)+1, c.NumFlows)
	}

	err := c.QoS.Validate(c.NumFlows)
	if err != nil {
		return err
	}

	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	if c.CriticalInterval == 0 {
		c.CriticalInterval = DefaultCriticalInterval
	}

	if c.NormalInterval == 0 {
		c.NormalInterval = DefaultNormalInterval
	}

	if c.CriticalInterval < 0 || c.NormalInterval < 0 {
		return fmt.Errorf("packet intervals must be positive")
	}

	if c.PayloadBytes == 0 {
		c.PayloadBytes = DefaultPayloadBytes
	}

	if c.LossTimeout == 0 {
		c.LossTimeout = DefaultLossTimeout
	}

	if c.ReportInterval < 0 {
		return fmt.Errorf("report interval can't be negative")
	}

	if c.Reporter == nil {
		c.Reporter = report.NoopReporter
	}

	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.NoopRecorder
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "simulation.Driver", "strategy": c.Strategy.Name()})

	return nil
}

// Driver is a discrete event loop that generates the traffic of every flow, asks the
// strategy for the link of each packet and applies the outcomes in time order.
type Driver struct {
	cfg DriverConfig
	q   queue
	run *runState
}

// NewDriver returns a new simulation driver.
func NewDriver(config DriverConfig) (*Driver, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Driver{
		cfg: config,
		run: &runState{
			runID:    config.RunID,
			strategy: config.Strategy,
			linkMon:  config.LinkMonitor,
			slaMon:   config.SLAMonitor,
			reporter: config.Reporter,
			recorder: config.MetricsRecorder,
			logger:   config.Logger,
		},
	}, nil
}

func (d *Driver) interval(flow model.FlowID) time.Duration {
	if d.cfg.QoS.Classify(flow).Critical {
		return d.cfg.CriticalInterval
	}
	return d.cfg.NormalInterval
}

// Run runs the simulation until every packet outcome has been applied. A driver can
// only run once.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	for i := 0; i < d.cfg.NumFlows; i++ {
		f := model.FlowID(i)
		// Stagger the flows inside their first interval.
		start := d.interval(f) * time.Duration(i) / time.Duration(d.cfg.NumFlows)
		d.q.schedule(event{at: start, kind: eventTransmit, flow: f})
	}

	if d.cfg.ReportInterval > 0 && d.cfg.ReportInterval <= d.cfg.Duration {
		d.q.schedule(event{at: d.cfg.ReportInterval, kind: eventReport})
	}

	for {
		select {
		case <-ctx.Done():
			return &d.run.res, ctx.Err()
		default:
		}

		e, ok := d.q.next()
		if !ok {
			break
		}
		d.run.res.SimulatedTime = e.at

		switch e.kind {
		case eventTransmit:
			d.transmit(ctx, e)
		case eventOutcome:
			d.run.outcome(e.packet)
		case eventReport:
			d.run.summarize(ctx, e.at)
			next := e.at + d.cfg.ReportInterval
			if next <= d.cfg.Duration {
				d.q.schedule(event{at: next, kind: eventReport})
			}
		}
	}

	d.cfg.Logger.Debugf("run finished at %s: %d transmitted, %d delivered, %d lost, %d skipped",
		d.run.res.SimulatedTime, d.run.res.Transmitted, d.run.res.Delivered, d.run.res.Lost, d.run.res.Skipped)

	return &d.run.res, nil
}

func (d *Driver) transmit(ctx context.Context, e event) {
	class := d.cfg.QoS.Classify(e.flow)
	l := d.cfg.Strategy.SelectLink(e.flow, class.Critical)
	d.cfg.MetricsRecorder.ObserveSelection(ctx, d.cfg.Strategy.Name(), l)
	d.send(e.at, e.flow, l, class.Critical, false)

	numLinks := d.cfg.Channel.NumLinks()
	if d.cfg.DuplicateCritical && class.Critical && numLinks > 1 {
		d.send(e.at, e.flow, (l+1)%model.LinkID(numLinks), true, true)
	}

	next := e.at + d.interval(e.flow)
	if next < d.cfg.Duration {
		d.q.schedule(event{at: next, kind: eventTransmit, flow: e.flow})
	}
}

func (d *Driver) send(at time.Duration, flow model.FlowID, l model.LinkID, critical, duplicate bool) {
	ev := model.PacketEvent{
		At:        at,
		FlowID:    flow,
		LinkID:    l,
		DelayMs:   model.PendingDelay,
		Bytes:     d.cfg.PayloadBytes,
		Critical:  critical,
		Duplicate: duplicate,
	}
	if !d.run.apply(ev) {
		return
	}
	d.run.res.Transmitted++

	delivered, delayMs := d.cfg.Channel.Transmit(l, at, critical)
	ev.Success = delivered
	ev.DelayMs = delayMs
	ev.At = at + d.cfg.LossTimeout
	if delivered {
		ev.At = at + time.Duration(delayMs*float64(time.Millisecond))
	}

	d.q.schedule(event{at: ev.At, kind: eventOutcome, packet: ev})
}

