package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/mlolab/mloeval/internal/log"
	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/report"
)

const schema = `CREATE TABLE IF NOT EXISTS run_results(
	run_id TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	strategy TEXT NOT NULL,
	run INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	num_links INTEGER NOT NULL,
	num_flows INTEGER NOT NULL,
	emergency_flows INTEGER NOT NULL,
	critical_flows INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	payload_bytes INTEGER NOT NULL,
	pdr REAL,
	critical_pdr REAL,
	non_critical_pdr REAL,
	avg_delay_ms REAL,
	critical_avg_delay_ms REAL,
	non_critical_avg_delay_ms REAL,
	avg_jitter_ms REAL,
	p99_latency_ms REAL,
	p999_latency_ms REAL,
	throughput_mbps REAL NOT NULL,
	avg_recovery_ms REAL NOT NULL,
	failures INTEGER NOT NULL,
	recoveries INTEGER NOT NULL,
	duplicates_tx INTEGER NOT NULL,
	duplicates_rx INTEGER NOT NULL,
	sla_deviation REAL,
	emergency_sla_deviation REAL,
	critical_sla_deviation REAL,
	normal_sla_deviation REAL,
	critical_high_sla_deviation REAL,
	critical_basic_sla_deviation REAL,
	non_critical_sla_deviation REAL,
	link_usage TEXT NOT NULL,
	link_throughput TEXT NOT NULL,
	load_balancing_efficiency REAL NOT NULL,
	reliability_score REAL,
	sla_tier TEXT NOT NULL,
	sla_performance TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_results_strategy ON run_results(scenario, strategy);`

const insert = `INSERT INTO run_results VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// ResultRepo stores the run results in a SQLite database.
type ResultRepo struct {
	db     *sql.DB
	logger log.Logger
}

// NewResultRepo opens (or creates) the SQLite database at path and ensures the schema.
func NewResultRepo(ctx context.Context, path string, logger log.Logger) (*ResultRepo, error) {
	if logger == nil {
		logger = log.Noop
	}

	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not connect to sqlite database: %w", err)
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}

	return &ResultRepo{
		db:     db,
		logger: logger.WithValues(log.Kv{"svc": "storage.sqlite.ResultRepo", "db": path}),
	}, nil
}

// Close closes the database.
func (r *ResultRepo) Close() error { return r.db.Close() }

func nullable(m model.Measurement) sql.NullFloat64 {
	return sql.NullFloat64{Float64: m.Value, Valid: m.OK}
}

func (r *ResultRepo) StoreResult(ctx context.Context, res report.RunResult) error {
	usage, err := json.Marshal(res.LinkUsage)
	if err != nil {
		return fmt.Errorf("could not marshal link usage: %w", err)
	}

	tp, err := json.Marshal(res.LinkThroughput)
	if err != nil {
		return fmt.Errorf("could not marshal link throughput: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insert,
		res.RunID, res.Scenario, res.Strategy, res.RunNumber, res.Seed,
		res.NumLinks, res.NumFlows, res.EmergencyFlows, res.CriticalFlows,
		res.Duration.Milliseconds(), res.PayloadBytes,
		nullable(res.PDRPercent), nullable(res.CriticalPDRPercent), nullable(res.NonCriticalPDRPercent),
		nullable(res.AvgDelayMs), nullable(res.CriticalAvgDelayMs), nullable(res.NonCriticalAvgDelayMs),
		nullable(res.AvgJitterMs), nullable(res.P99LatencyMs), nullable(res.P999LatencyMs),
		res.TotalThroughputMbps, float64(res.AvgRecoveryTime.Microseconds())/1000,
		res.Failures, res.Recoveries, int64(res.DuplicatesTx), int64(res.DuplicatesRx),
		nullable(res.SLADeviation), nullable(res.EmergencyDeviation), nullable(res.CriticalDeviation),
		nullable(res.NormalDeviation), nullable(res.CriticalHighDeviation), nullable(res.CriticalBasicDeviation),
		nullable(res.NonCriticalDeviation),
		string(usage), string(tp),
		res.LoadBalancingEfficiency, nullable(res.ReliabilityScore), res.SLATier, res.SLAPerformance,
	)
	if err != nil {
		return fmt.Errorf("could not insert run result %s: %w", res.RunID, err)
	}

	r.logger.Debugf("run result %s stored", res.RunID)
	return nil
}
