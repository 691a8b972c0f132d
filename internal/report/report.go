package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/monitor/link"
	"github.com/mlolab/mloeval/internal/monitor/sla"
	"github.com/mlolab/mloeval/internal/strategy"
)

// Reporter knows how to report the periodic summaries and the final results of the runs,
// and the comparison of the strategies of a batch.
type Reporter interface {
	ReportSummary(ctx context.Context, s Summary) error
	ReportResult(ctx context.Context, r RunResult) error
	ReportComparison(ctx context.Context, cmps []Comparison) error
}

// NoopReporter doesn't report anything.
const NoopReporter = noopReporter(0)

type noopReporter int

func (noopReporter) ReportSummary(context.Context, Summary) error         { return nil }
func (noopReporter) ReportResult(context.Context, RunResult) error        { return nil }
func (noopReporter) ReportComparison(context.Context, []Comparison) error { return nil }

// Summary is a periodic snapshot of a running evaluation.
type Summary struct {
	RunID            string
	At               time.Duration
	Strategy         string
	Links            []link.Snapshot
	LinkUsage        []float64
	LinkThroughput   []float64
	OverallPDR       model.Measurement
	OverallDeviation model.Measurement
}

// Summarize returns the current summary of a run.
func Summarize(now time.Duration, s strategy.Strategy, lm *link.Monitor, sm *sla.Monitor) Summary {
	return Summary{
		At:               now,
		Strategy:         s.Name(),
		Links:            lm.Snapshots(),
		LinkUsage:        s.GetLinkUsage(),
		LinkThroughput:   s.GetLinkThroughput(),
		OverallPDR:       lm.OverallPDR(),
		OverallDeviation: sm.OverallDeviation(),
	}
}

// SLA tier labels of the flow mix of a run.
const (
	SLATierMixed         = "Mixed"
	SLATierCriticalHigh  = "Critical High"
	SLATierCriticalBasic = "Critical Basic"
	SLATierNonCritical   = "Non Critical"
	SLATierUnknown       = "Unknown"
)

// SLA performance classes based on the overall deviation.
const (
	SLAPerformanceExcellent = "EXCELLENT"
	SLAPerformanceGood      = "GOOD"
	SLAPerformanceFair      = "FAIR"
	SLAPerformancePoor      = "POOR"
	SLAPerformanceNoData    = "NO DATA"
)

// RunResult is the final record of an evaluation run. Every Measurement can be NoData.
type RunResult struct {
	RunID          string
	Scenario       string
	Strategy       string
	RunNumber      int
	Seed           int64
	NumLinks       int
	NumFlows       int
	EmergencyFlows int
	CriticalFlows  int
	Duration       time.Duration
	PayloadBytes   int
	WallTime       time.Duration

	PDRPercent            model.Measurement
	CriticalPDRPercent    model.Measurement
	NonCriticalPDRPercent model.Measurement
	AvgDelayMs            model.Measurement
	CriticalAvgDelayMs    model.Measurement
	NonCriticalAvgDelayMs model.Measurement
	AvgJitterMs           model.Measurement
	P99LatencyMs          model.Measurement
	P999LatencyMs         model.Measurement
	TotalThroughputMbps   float64

	AvgRecoveryTime time.Duration
	Failures        int
	Recoveries      int
	DuplicatesTx    uint64
	DuplicatesRx    uint64

	SLADeviation           model.Measurement
	EmergencyDeviation     model.Measurement
	CriticalDeviation      model.Measurement
	NormalDeviation        model.Measurement
	CriticalHighDeviation  model.Measurement
	CriticalBasicDeviation model.Measurement
	NonCriticalDeviation   model.Measurement

	LinkUsage               []float64
	LinkThroughput          []float64
	LoadBalancingEfficiency float64
	ReliabilityScore        model.Measurement
	SLATier                 string
	SLAPerformance          string
}

// BuildRequest has everything needed to build the result of a finished run.
type BuildRequest struct {
	// RunID is generated when empty.
	RunID          string
	Scenario       string
	RunNumber      int
	Seed           int64
	NumFlows       int
	EmergencyFlows int
	CriticalFlows  int
	Duration       time.Duration
	PayloadBytes   int
	WallTime       time.Duration
	Strategy       strategy.Strategy
	LinkMonitor    *link.Monitor
	SLAMonitor     *sla.Monitor
	// DeliveredDelaysMs are the delays of every delivered packet, used for the tail latency.
	DeliveredDelaysMs []float64
}

// Build returns the final result of a run.
func Build(r BuildRequest) RunResult {
	runID := r.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	lm, sm := r.LinkMonitor, r.SLAMonitor
	snaps := lm.Snapshots()
	usage := r.Strategy.GetLinkUsage()
	tp := r.Strategy.GetLinkThroughput()

	res := RunResult{
		RunID:          runID,
		Scenario:       r.Scenario,
		Strategy:       r.Strategy.Name(),
		RunNumber:      r.RunNumber,
		Seed:           r.Seed,
		NumLinks:       lm.NumLinks(),
		NumFlows:       r.NumFlows,
		EmergencyFlows: r.EmergencyFlows,
		CriticalFlows:  r.CriticalFlows,
		Duration:       r.Duration,
		PayloadBytes:   r.PayloadBytes,
		WallTime:       r.WallTime,

		PDRPercent:            percent(lm.OverallPDR()),
		CriticalPDRPercent:    percent(lm.CriticalPDR()),
		NonCriticalPDRPercent: percent(lm.NonCriticalPDR()),
		AvgDelayMs:            overallAvgDelay(snaps),
		CriticalAvgDelayMs:    lm.CriticalAvgDelay(),
		NonCriticalAvgDelayMs: lm.NonCriticalAvgDelay(),
		AvgJitterMs:           avgJitter(snaps),
		P99LatencyMs:          Percentile(r.DeliveredDelaysMs, 99),
		P999LatencyMs:         Percentile(r.DeliveredDelaysMs, 99.9),
		TotalThroughputMbps:   sum(tp),

		AvgRecoveryTime: lm.AverageRecoveryTime(),
		Failures:        lm.FailureCount(),
		Recoveries:      lm.RecoveryCount(),

		SLADeviation:           sm.OverallDeviation(),
		EmergencyDeviation:     sm.TierDeviation(model.TierEmergency),
		CriticalDeviation:      sm.TierDeviation(model.TierCritical),
		NormalDeviation:        sm.TierDeviation(model.TierNormal),
		CriticalHighDeviation:  sm.ContractDeviation(model.ContractCriticalHigh),
		CriticalBasicDeviation: sm.ContractDeviation(model.ContractCriticalBasic),
		NonCriticalDeviation:   sm.ContractDeviation(model.ContractNonCritical),

		LinkUsage:               usage,
		LinkThroughput:          tp,
		LoadBalancingEfficiency: LoadBalancingEfficiency(usage),
		SLATier:                 SLATier(r.EmergencyFlows, r.CriticalFlows, r.NumFlows),
	}

	for _, s := range snaps {
		res.DuplicatesTx += s.DuplicatesTx
		res.DuplicatesRx += s.DuplicatesRx
	}

	res.ReliabilityScore = ReliabilityScore(res.PDRPercent, res.AvgDelayMs)
	res.SLAPerformance = SLAPerformance(res.SLADeviation)

	return res
}

func percent(m model.Measurement) model.Measurement {
	if !m.OK {
		return model.NoData
	}
	return model.Measured(m.Value * 100)
}

func sum(vs []float64) float64 {
	total := 0.0
	for _, v := range vs {
		total += v
	}
	return total
}

func overallAvgDelay(snaps []link.Snapshot) model.Measurement {
	total, n := 0.0, uint64(0)
	for _, s := range snaps {
		total += s.Critical.DelaySumMs + s.NonCritical.DelaySumMs
		n += s.Critical.DelaySamples + s.NonCritical.DelaySamples
	}
	if n == 0 {
		return model.NoData
	}
	return model.Measured(total / float64(n))
}

func avgJitter(snaps []link.Snapshot) model.Measurement {
	total, n := 0.0, 0
	for _, s := range snaps {
		if s.JitterMs.OK {
			total += s.JitterMs.Value
			n++
		}
	}
	if n == 0 {
		return model.NoData
	}
	return model.Measured(total / float64(n))
}

// Percentile returns the p percentile of the values using the floor(p·n/100) index.
func Percentile(values []float64, p float64) model.Measurement {
	if len(values) == 0 {
		return model.NoData
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	i := int(p * float64(len(sorted)) / 100)
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	if i < 0 {
		i = 0
	}
	return model.Measured(sorted[i])
}

// LoadBalancingEfficiency is 100 minus the population standard deviation of the
// link usage percentages, floored at 0.
func LoadBalancingEfficiency(usage []float64) float64 {
	if len(usage) == 0 {
		return 0
	}

	mean := sum(usage) / float64(len(usage))
	variance := 0.0
	for _, u := range usage {
		variance += (u - mean) * (u - mean)
	}
	stdev := math.Sqrt(variance / float64(len(usage)))

	return math.Max(0, 100-stdev)
}

// ReliabilityScore combines the PDR percent and the average delay: pdr·0.6 + (100 − delay)·0.4.
func ReliabilityScore(pdrPercent, avgDelayMs model.Measurement) model.Measurement {
	if !pdrPercent.OK || !avgDelayMs.OK {
		return model.NoData
	}
	return model.Measured(pdrPercent.Value*0.6 + (100-avgDelayMs.Value)*0.4)
}

// SLATier returns the label of the flow tier mix.
func SLATier(emergency, critical, total int) string {
	normal := total - emergency - critical
	tiers := 0
	for _, n := range []int{emergency, critical, normal} {
		if n > 0 {
			tiers++
		}
	}

	switch {
	case tiers > 1:
		return SLATierMixed
	case emergency > 0:
		return SLATierCriticalHigh
	case critical > 0:
		return SLATierCriticalBasic
	case normal > 0:
		return SLATierNonCritical
	}
	return SLATierUnknown
}

// SLAPerformance classifies the overall SLA deviation.
func SLAPerformance(deviation model.Measurement) string {
	if !deviation.OK {
		return SLAPerformanceNoData
	}

	switch d := deviation.Value; {
	case d < 1:
		return SLAPerformanceExcellent
	case d < 5:
		return SLAPerformanceGood
	case d < 10:
		return SLAPerformanceFair
	}
	return SLAPerformancePoor
}
