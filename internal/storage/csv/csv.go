package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/report"
)

const noData = "NA"

// ResultRepo stores the run results as CSV rows. The header is written with the
// first result, the number of links of that result sets the per link columns.
// It is safe for concurrent use.
type ResultRepo struct {
	mu       sync.Mutex
	w        *csv.Writer
	numLinks int
	header   bool
	logger   log.Logger
}

// NewResultRepo returns a new CSV result repository. If header is false the header
// row is not written, used when appending to an existing file.
func NewResultRepo(w io.Writer, header bool, logger log.Logger) *ResultRepo {
	if logger == nil {
		logger = log.Noop
	}

	return &ResultRepo{
		w:        csv.NewWriter(w),
		header:   header,
		numLinks: -1,
		logger:   logger.WithValues(log.Kv{"svc": "storage.csv.ResultRepo"}),
	}
}

// Header returns the CSV header for a number of links.
func Header(numLinks int) []string {
	h := []string{
		"RunID", "Scenario", "Strategy", "Run", "Seed", "NumLinks", "NumFlows", "EmergencyFlows", "CriticalFlows",
		"DurationSeconds", "PayloadBytes",
		"PDR", "CriticalPDR", "NonCriticalPDR",
		"AvgDelayMs", "CriticalAvgDelayMs", "NonCriticalAvgDelayMs", "AvgJitterMs", "P99LatencyMs", "P999LatencyMs",
		"ThroughputMbps", "AvgRecoveryTimeMs", "Failures", "Recoveries", "DuplicatesTx", "DuplicatesRx",
		"SLADeviation", "EmergencySLADeviation", "CriticalSLADeviation", "NormalSLADeviation",
		"CriticalHighSLADeviation", "CriticalBasicSLADeviation", "NonCriticalSLADeviation",
	}
	for i := 0; i < numLinks; i++ {
		h = append(h, fmt.Sprintf("Link%dUsage", i))
	}
	for i := 0; i < numLinks; i++ {
		h = append(h, fmt.Sprintf("Link%dThroughputMbps", i))
	}
	return append(h, "LoadBalancingEfficiency", "ReliabilityScore", "SLATier", "SLAPerformance")
}

func ms(m model.Measurement) string { return m.Format(4, noData) }

func f(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func row(r report.RunResult, numLinks int) []string {
	rec := []string{
		r.RunID, r.Scenario, r.Strategy, strconv.Itoa(r.RunNumber), strconv.FormatInt(r.Seed, 10),
		strconv.Itoa(r.NumLinks), strconv.Itoa(r.NumFlows), strconv.Itoa(r.EmergencyFlows), strconv.Itoa(r.CriticalFlows),
		f(r.Duration.Seconds()), strconv.Itoa(r.PayloadBytes),
		ms(r.PDRPercent), ms(r.CriticalPDRPercent), ms(r.NonCriticalPDRPercent),
		ms(r.AvgDelayMs), ms(r.CriticalAvgDelayMs), ms(r.NonCriticalAvgDelayMs), ms(r.AvgJitterMs), ms(r.P99LatencyMs), ms(r.P999LatencyMs),
		f(r.TotalThroughputMbps), f(float64(r.AvgRecoveryTime.Microseconds()) / 1000),
		strconv.Itoa(r.Failures), strconv.Itoa(r.Recoveries),
		strconv.FormatUint(r.DuplicatesTx, 10), strconv.FormatUint(r.DuplicatesRx, 10),
		ms(r.SLADeviation), ms(r.EmergencyDeviation), ms(r.CriticalDeviation), ms(r.NormalDeviation),
		ms(r.CriticalHighDeviation), ms(r.CriticalBasicDeviation), ms(r.NonCriticalDeviation),
	}

	at := func(vs []float64, i int) string {
		if i >= len(vs) {
			return noData
		}
		return f(vs[i])
	}
	for i := 0; i < numLinks; i++ {
		rec = append(rec, at(r.LinkUsage, i))
	}
	for i := 0; i < numLinks; i++ {
		rec = append(rec, at(r.LinkThroughput, i))
	}

	return append(rec, f(r.LoadBalancingEfficiency), ms(r.ReliabilityScore), r.SLATier, r.SLAPerformance)
}

func (c *ResultRepo) StoreResult(_ context.Context, r report.RunResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.numLinks < 0 {
		c.numLinks = r.NumLinks
		if c.header {
			err := c.w.Write(Header(c.numLinks))
			if err != nil {
				return fmt.Errorf("could not write CSV header: %w", err)
			}
		}
	}

	if r.NumLinks != c.numLinks {
		c.logger.Warningf("result %s has %d links, CSV columns are for %d links", r.RunID, r.NumLinks, c.numLinks)
	}

	err := c.w.Write(row(r, c.numLinks))
	if err != nil {
		return fmt.Errorf("could not write CSV row: %w", err)
	}

	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("could not flush CSV: %w", err)
	}

	return nil
}
