package report

import (
	"math"

	"github.com/mlolab/mloeval/internal/model"
)

// Stat is the mean and the population standard deviation of a metric over the runs
// that measured it.
type Stat struct {
	Mean    model.Measurement
	StdDev  model.Measurement
	Samples int
}

// Comparison aggregates the runs of a strategy with the same SLA tier.
type Comparison struct {
	SLATier                 string
	Strategy                string
	Runs                    int
	PDRPercent              Stat
	CriticalPDRPercent      Stat
	AvgDelayMs              Stat
	ThroughputMbps          Stat
	SLADeviation            Stat
	LoadBalancingEfficiency Stat
	ReliabilityScore        Stat
}

// Compare groups the results by SLA tier and strategy, in the order each group is
// first seen, and aggregates every metric. Runs without data of a metric are left
// out of that metric.
func Compare(results []RunResult) []Comparison {
	type key struct{ tier, strategy string }

	order := []key{}
	groups := map[key][]RunResult{}
	for _, r := range results {
		k := key{tier: r.SLATier, strategy: r.Strategy}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	cmps := make([]Comparison, 0, len(order))
	for _, k := range order {
		rs := groups[k]
		metric := func(f func(RunResult) model.Measurement) Stat {
			ms := make([]model.Measurement, 0, len(rs))
			for _, r := range rs {
				ms = append(ms, f(r))
			}
			return NewStat(ms)
		}

		cmps = append(cmps, Comparison{
			SLATier:                 k.tier,
			Strategy:                k.strategy,
			Runs:                    len(rs),
			PDRPercent:              metric(func(r RunResult) model.Measurement { return r.PDRPercent }),
			CriticalPDRPercent:      metric(func(r RunResult) model.Measurement { return r.CriticalPDRPercent }),
			AvgDelayMs:              metric(func(r RunResult) model.Measurement { return r.AvgDelayMs }),
			ThroughputMbps:          metric(func(r RunResult) model.Measurement { return model.Measured(r.TotalThroughputMbps) }),
			SLADeviation:            metric(func(r RunResult) model.Measurement { return r.SLADeviation }),
			LoadBalancingEfficiency: metric(func(r RunResult) model.Measurement { return model.Measured(r.LoadBalancingEfficiency) }),
			ReliabilityScore:        metric(func(r RunResult) model.Measurement { return r.ReliabilityScore }),
		})
	}

	return cmps
}

// NewStat returns the stat of the measured values, NoData ones are ignored.
func NewStat(ms []model.Measurement) Stat {
	vs := make([]float64, 0, len(ms))
	for _, m := range ms {
		if m.OK {
			vs = append(vs, m.Value)
		}
	}
	if len(vs) == 0 {
		return Stat{Mean: model.NoData, StdDev: model.NoData}
	}

	mean := sum(vs) / float64(len(vs))
	sq := 0.0
	for _, v := range vs {
		sq += (v - mean) * (v - mean)
	}

	return Stat{
		Mean:    model.Measured(mean),
		StdDev:  model.Measured(math.Sqrt(sq / float64(len(vs)))),
		Samples: len(vs),
	}
}
