package prometheus

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
)

const (
	Prefix = "mloeval"
)

// Recorder records the evaluation metrics on Prometheus collectors.
type Recorder struct {
	reg prometheus.Registerer

	linkPDR        *prometheus.GaugeVec
	linkWindowPDR  *prometheus.GaugeVec
	linkDelay      *prometheus.GaugeVec
	linkJitter     *prometheus.GaugeVec
	linkThroughput *prometheus.GaugeVec
	linkFailing    *prometheus.GaugeVec
	selections     *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	slaDeviation   *prometheus.GaugeVec
	runDuration    *prometheus.HistogramVec
}

// NewRecorder returns a new recorder registered on reg, the default registerer when nil.
func NewRecorder(reg prometheus.Registerer) Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	linkGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Prefix,
			Subsystem: "link",
			Name:      name,
			Help:      help,
		}, []string{"strategy", "link"})
	}

	r := &Recorder{
		reg: reg,

		linkPDR:        linkGauge("pdr_ratio", "Cumulative packet delivery ratio of the link."),
		linkWindowPDR:  linkGauge("window_pdr_ratio", "Packet delivery ratio of the link recent outcomes."),
		linkDelay:      linkGauge("delay_ewma_milliseconds", "EWMA of the link delivered packet delays."),
		linkJitter:     linkGauge("jitter_milliseconds", "Mean absolute difference of consecutive link delays."),
		linkThroughput: linkGauge("throughput_mbps", "Sliding window throughput of the link."),
		linkFailing:    linkGauge("failing", "1 when the link is in failure state."),

		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Prefix,
			Subsystem: "strategy",
			Name:      "selections_total",
			Help:      "Total number of link selections.",
		}, []string{"strategy", "link"}),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Prefix,
			Subsystem: "link",
			Name:      "transitions_total",
			Help:      "Total number of link failure and recovery transitions.",
		}, []string{"strategy", "link", "kind"}),

		slaDeviation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Prefix,
			Subsystem: "sla",
			Name:      "deviation_percent",
			Help:      "Average SLA delay deviation of the tier flows.",
		}, []string{"strategy", "tier"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Prefix,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time histogram of the evaluation runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy", "success"}),
	}

	r.init()

	return *r
}

func (r Recorder) init() {
	r.reg.MustRegister(
		r.linkPDR,
		r.linkWindowPDR,
		r.linkDelay,
		r.linkJitter,
		r.linkThroughput,
		r.linkFailing,
		r.selections,
		r.transitions,
		r.slaDeviation,
		r.runDuration,
	)
}

func (r Recorder) ObserveLink(_ context.Context, strategy string, s link.Snapshot) {
	if !s.Observed {
		return
	}

	l := strconv.Itoa(int(s.LinkID))
	setIfData := func(g *prometheus.GaugeVec, m model.Measurement) {
		if m.OK {
			g.WithLabelValues(strategy, l).Set(m.Value)
		}
	}

	setIfData(r.linkPDR, s.PDR)
	setIfData(r.linkWindowPDR, s.WindowPDR)
	setIfData(r.linkDelay, s.AvgDelayMs)
	setIfData(r.linkJitter, s.JitterMs)
	r.linkThroughput.WithLabelValues(strategy, l).Set(s.ThroughputMbps)

	failing := 0.0
	if s.State == link.StateFailing {
		failing = 1
	}
	r.linkFailing.WithLabelValues(strategy, l).Set(failing)
}

func (r Recorder) ObserveSelection(_ context.Context, strategy string, linkID model.LinkID) {
	r.selections.WithLabelValues(strategy, strconv.Itoa(int(linkID))).Inc()
}

func (r Recorder) ObserveTransition(_ context.Context, strategy string, t link.Transition) {
	r.transitions.WithLabelValues(strategy, strconv.Itoa(int(t.LinkID)), string(t.Kind)).Inc()
}

// ObserveDeviation sets the tier deviation. Tiers without data are removed instead of
// being reported as 0.
func (r Recorder) ObserveDeviation(_ context.Context, strategy string, tier model.Tier, deviation model.Measurement) {
	if !deviation.OK {
		r.slaDeviation.DeleteLabelValues(strategy, tier.String())
		return
	}
	r.slaDeviation.WithLabelValues(strategy, tier.String()).Set(deviation.Value)
}

func (r Recorder) ObserveRun(_ context.Context, strategy string, t time.Duration, err error) {
	r.runDuration.WithLabelValues(strategy, strconv.FormatBool(err == nil)).Observe(t.Seconds())
}
