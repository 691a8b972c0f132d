package simulation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/metrics"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/strategy"
)

// ErrMalformedEvent is used when a trace line can't be decoded.
var ErrMalformedEvent = fmt.Errorf("malformed trace event")

// TraceEvent is the JSON lines representation of a packet event. A pending transmission
// has `delay_ms: -1`.
type TraceEvent struct {
	AtMs      float64 `json:"at_ms"`
	Flow      int     `json:"flow"`
	Link      int     `json:"link"`
	Success   bool    `json:"success"`
	DelayMs   float64 `json:"delay_ms"`
	Bytes     uint32  `json:"bytes"`
	Critical  bool    `json:"critical,omitempty"`
	Duplicate bool    `json:"duplicate,omitempty"`
}

// NewTraceEvent returns the trace representation of a packet event.
func NewTraceEvent(ev model.PacketEvent) TraceEvent {
	return TraceEvent{
		AtMs:      float64(ev.At) / float64(time.Millisecond),
		Flow:      int(ev.FlowID),
		Link:      int(ev.LinkID),
		Success:   ev.Success,
		DelayMs:   ev.DelayMs,
		Bytes:     ev.Bytes,
		Critical:  ev.Critical,
		Duplicate: ev.Duplicate,
	}
}

// PacketEvent returns the packet event of the trace event.
func (t TraceEvent) PacketEvent() model.PacketEvent {
	return model.PacketEvent{
		At:        time.Duration(t.AtMs * float64(time.Millisecond)),
		FlowID:    model.FlowID(t.Flow),
		LinkID:    model.LinkID(t.Link),
		Success:   t.Success,
		DelayMs:   t.DelayMs,
		Bytes:     t.Bytes,
		Critical:  t.Critical,
		Duplicate: t.Duplicate,
	}
}

// TraceSource reads packet events from a JSON lines trace. Blank lines and lines starting
// with `#` are ignored.
type TraceSource struct {
	sc   *bufio.Scanner
	line int
}

// NewTraceSource returns a new trace source reading from r.
func NewTraceSource(r io.Reader) *TraceSource {
	return &TraceSource{sc: bufio.NewScanner(r)}
}

// Next returns the next event of the trace or io.EOF when there are no more. Errors
// wrapping ErrMalformedEvent only affect that line and reading can continue.
func (t *TraceSource) Next() (model.PacketEvent, error) {
	for t.sc.Scan() {
		t.line++
		line := strings.TrimSpace(t.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var te TraceEvent
		err := json.Unmarshal([]byte(line), &te)
		if err != nil {
			return model.PacketEvent{}, fmt.Errorf("line %d: %w: %s", t.line, ErrMalformedEvent, err)
		}

		return te.PacketEvent(), nil
	}

	if err := t.sc.Err(); err != nil {
		return model.PacketEvent{}, fmt.Errorf("could not read trace: %w", err)
	}

	return model.PacketEvent{}, io.EOF
}

// ReplayConfig is the Replay configuration.
type ReplayConfig struct {
	RunID       string
	Strategy    strategy.Strategy
	LinkMonitor *link.Monitor
	SLAMonitor  *sla.Monitor
	Source      *TraceSource
	// ReportInterval disables the periodic summaries when 0.
	ReportInterval  time.Duration
	Reporter        report.Reporter
	MetricsRecorder metrics.Recorder
	Logger          log.Logger
}

func (c *ReplayConfig) defaults() error {
	if c.Strategy == nil {
		return fmt.Errorf("strategy is required")
	}

	if c.LinkMonitor == nil || c.SLAMonitor == nil {
		return fmt.Errorf("link and SLA monitors are required")
	}

	if c.Source == nil {
		return fmt.Errorf("trace source is required")
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "simulation.Replay", "strategy": c.Strategy.Name()})

	return nil
}

// Replay applies every event of a trace through a strategy. Malformed, invalid and out of
// order events are logged and skipped.
func Replay(ctx context.Context, config ReplayConfig) (*Result, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	run := &runState{
		runID:    config.RunID,
		strategy: config.Strategy,
		linkMon:  config.LinkMonitor,
		slaMon:   config.SLAMonitor,
		reporter: config.Reporter,
		recorder: config.MetricsRecorder,
		logger:   config.Logger,
	}
	nextReport := config.ReportInterval

	for {
		select {
		case <-ctx.Done():
			return &run.res, ctx.Err()
		default:
		}

		ev, err := config.Source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrMalformedEvent) {
			run.res.Skipped++
			config.Logger.Warningf("trace event skipped: %s", err)
			continue
		}
		if err != nil {
			return &run.res, err
		}

		if ev.At < run.res.SimulatedTime {
			run.res.Skipped++
			config.Logger.Warningf("trace event at %s skipped, it's older than %s", ev.At, run.res.SimulatedTime)
			continue
		}

		for config.ReportInterval > 0 && ev.At >= nextReport {
			run.summarize(ctx, nextReport)
			nextReport += config.ReportInterval
		}
		run.res.SimulatedTime = ev.At

		if ev.Pending() {
			if run.apply(ev) {
				run.res.Transmitted++
			}
			continue
		}
		run.outcome(ev)
	}

	return &run.res, nil
}
