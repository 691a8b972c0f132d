package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pterm/pterm"
)

const consoleNoData = "n/a"

// ConsoleReporter renders the summaries and results as tables. It is safe for
// concurrent use, every table is written at once.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter returns a reporter that writes to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

func (c *ConsoleReporter) render(title string, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("could not render table: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = fmt.Fprintf(c.out, "%s\n%s\n", title, table)
	return err
}

func (c *ConsoleReporter) ReportSummary(_ context.Context, s Summary) error {
	data := pterm.TableData{{"Link", "State", "Tx", "Rx", "PDR", "Window PDR", "Delay (ms)", "Jitter (ms)", "Usage (%)", "Mbps"}}
	for i, l := range s.Links {
		data = append(data, []string{
			strconv.Itoa(int(l.LinkID)),
			l.State.String(),
			strconv.FormatUint(l.Tx, 10),
			strconv.FormatUint(l.Rx, 10),
			l.PDR.Format(3, consoleNoData),
			l.WindowPDR.Format(3, consoleNoData),
			l.AvgDelayMs.Format(2, consoleNoData),
			l.JitterMs.Format(2, consoleNoData),
			formatAt(s.LinkUsage, i),
			formatAt(s.LinkThroughput, i),
		})
	}

	title := fmt.Sprintf("[%s] %s: PDR %s, SLA deviation %s%%", s.At, s.Strategy,
		s.OverallPDR.Format(3, consoleNoData), s.OverallDeviation.Format(2, consoleNoData))

	return c.render(title, data)
}

func (c *ConsoleReporter) ReportResult(_ context.Context, r RunResult) error {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

	data := pterm.TableData{
		{"Metric", "Value"},
		{"Run", fmt.Sprintf("%s #%d (%s)", r.Scenario, r.RunNumber, r.RunID)},
		{"Strategy", r.Strategy},
		{"PDR (%)", r.PDRPercent.Format(2, consoleNoData)},
		{"Critical PDR (%)", r.CriticalPDRPercent.Format(2, consoleNoData)},
		{"Non critical PDR (%)", r.NonCriticalPDRPercent.Format(2, consoleNoData)},
		{"Avg delay (ms)", r.AvgDelayMs.Format(3, consoleNoData)},
		{"Critical avg delay (ms)", r.CriticalAvgDelayMs.Format(3, consoleNoData)},
		{"Non critical avg delay (ms)", r.NonCriticalAvgDelayMs.Format(3, consoleNoData)},
		{"Avg jitter (ms)", r.AvgJitterMs.Format(3, consoleNoData)},
		{"P99 latency (ms)", r.P99LatencyMs.Format(3, consoleNoData)},
		{"P99.9 latency (ms)", r.P999LatencyMs.Format(3, consoleNoData)},
		{"Throughput (Mbps)", f(r.TotalThroughputMbps)},
		{"Failures / recoveries", fmt.Sprintf("%d / %d", r.Failures, r.Recoveries)},
		{"Avg recovery time", r.AvgRecoveryTime.String()},
		{"SLA deviation (%)", r.SLADeviation.Format(2, consoleNoData)},
		{"Emergency SLA deviation (%)", r.EmergencyDeviation.Format(2, consoleNoData)},
		{"Critical SLA deviation (%)", r.CriticalDeviation.Format(2, consoleNoData)},
		{"Normal SLA deviation (%)", r.NormalDeviation.Format(2, consoleNoData)},
		{"Load balancing efficiency", f(r.LoadBalancingEfficiency)},
		{"Reliability score", r.ReliabilityScore.Format(2, consoleNoData)},
		{"SLA tier", r.SLATier},
		{"SLA performance", r.SLAPerformance},
	}
	for i := range r.LinkUsage {
		data = append(data, []string{fmt.Sprintf("Link %d usage (%%) / Mbps", i), formatAt(r.LinkUsage, i) + " / " + formatAt(r.LinkThroughput, i)})
	}

	return c.render(fmt.Sprintf("Results of %s", r.Strategy), data)
}

func (c *ConsoleReporter) ReportComparison(_ context.Context, cmps []Comparison) error {
	stat := func(s Stat, prec int) string {
		if !s.Mean.OK {
			return consoleNoData
		}
		return s.Mean.Format(prec, consoleNoData) + " ± " + s.StdDev.Format(prec, consoleNoData)
	}

	data := pterm.TableData{{"SLA tier", "Strategy", "Runs", "PDR (%)", "Critical PDR (%)", "Avg delay (ms)", "Mbps", "SLA deviation (%)", "LB efficiency", "Reliability"}}
	for _, cmp := range cmps {
		data = append(data, []string{
			cmp.SLATier,
			cmp.Strategy,
			strconv.Itoa(cmp.Runs),
			stat(cmp.PDRPercent, 2),
			stat(cmp.CriticalPDRPercent, 2),
			stat(cmp.AvgDelayMs, 3),
			stat(cmp.ThroughputMbps, 2),
			stat(cmp.SLADeviation, 2),
			stat(cmp.LoadBalancingEfficiency, 2),
			stat(cmp.ReliabilityScore, 2),
		})
	}

	return c.render("Strategy comparison", data)
}

func formatAt(vs []float64, i int) string {
	if i >= len(vs) {
		return consoleNoData
	}
	return strconv.FormatFloat(vs[i], 'f', 2, 64)
}
