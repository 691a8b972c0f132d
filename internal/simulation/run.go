package simulation

import (
	"context"
	"time"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/metrics"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/strategy"
)

// Result is the outcome of a driven or replayed run.
type Result struct {
	// DeliveredDelaysMs has the delay of every delivered original packet.
	DeliveredDelaysMs []float64
	Transmitted       uint64
	Delivered         uint64
	Lost              uint64
	// Skipped are the events rejected by the strategy or the monitors.
	Skipped uint64
	// SimulatedTime is the time of the last processed event.
	SimulatedTime time.Duration
}

// runState applies the events of a run and emits its periodic summaries.
type runState struct {
	runID    string
	strategy strategy.Strategy
	linkMon  *link.Monitor
	slaMon   *sla.Monitor
	reporter report.Reporter
	recorder metrics.Recorder
	logger   log.Logger
	res      Result
}

// apply feeds the event to the strategy. Rejected events are logged and skipped.
func (r *runState) apply(ev model.PacketEvent) bool {
	err := r.strategy.UpdateLinkMetrics(ev)
	if err != nil {
		r.res.Skipped++
		r.logger.Warningf("event of flow %d on link %d skipped: %s", ev.FlowID, ev.LinkID, err)
		return false
	}
	return true
}

func (r *runState) outcome(ev model.PacketEvent) {
	if !r.apply(ev) {
		return
	}

	if !ev.Success {
		r.res.Lost++
		return
	}

	r.res.Delivered++
	if !ev.Duplicate {
		r.res.DeliveredDelaysMs = append(r.res.DeliveredDelaysMs, ev.DelayMs)
	}
}

func (r *runState) summarize(ctx context.Context, at time.Duration) {
	s := report.Summarize(at, r.strategy, r.linkMon, r.slaMon)
	s.RunID = r.runID

	err := r.reporter.ReportSummary(ctx, s)
	if err != nil {
		r.logger.Warningf("could not report summary: %s", err)
	}

	for _, snap := range s.Links {
		r.recorder.ObserveLink(ctx, s.Strategy, snap)
	}
	for _, tier := range model.Tiers() {
		r.recorder.ObserveDeviation(ctx, s.Strategy, tier, r.slaMon.TierDeviation(tier))
	}
}
