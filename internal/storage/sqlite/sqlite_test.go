package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlolab/mloeval/internal/model"
	"github.com/mlolab/mloeval/internal/report"
	"github.com/mlolab/mloeval/internal/storage/sqlite"
)

func TestResultRepoStoreResult(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "results.db")
	repo, err := sqlite.NewResultRepo(ctx, path, nil)
	require.NoError(err)

	res := report.RunResult{
		RunID:           "run-1",
		Scenario:        "baseline",
		Strategy:        "SLA-MLO",
		RunNumber:       3,
		NumLinks:        2,
		Duration:        2 * time.Second,
		PDRPercent:      model.Measured(99),
		SLADeviation:    model.NoData,
		LinkUsage:       []float64{25, 75},
		LinkThroughput:  []float64{1, 2},
		AvgRecoveryTime: 1500 * time.Microsecond,
		SLATier:         report.SLATierMixed,
		SLAPerformance:  report.SLAPerformanceNoData,
	}
	require.NoError(repo.StoreResult(ctx, res))

	// The same run can't be stored twice.
	assert.Error(repo.StoreResult(ctx, res))

	// Reopening keeps the data.
	require.NoError(repo.Close())
	repo, err = sqlite.NewResultRepo(ctx, path, nil)
	require.NoError(err)
	defer repo.Close()

	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(err)
	defer db.Close()

	var (
		strategy   string
		pdr        sql.NullFloat64
		deviation  sql.NullFloat64
		usage      string
		recoveryMs float64
		durationMs int64
	)
	row := db.QueryRowContext(ctx, `SELECT strategy, pdr, sla_deviation, link_usage, avg_recovery_ms, duration_ms FROM run_results WHERE run_id = ?`, "run-1")
	require.NoError(row.Scan(&strategy, &pdr, &deviation, &usage, &recoveryMs, &durationMs))

	assert.Equal("SLA-MLO", strategy)
	assert.Equal(sql.NullFloat64{Float64: 99, Valid: true}, pdr)
	assert.False(deviation.Valid)
	assert.Equal("[25,75]", usage)
	assert.Equal(1.5, recoveryMs)
	assert.Equal(int64(2000), durationMs)
}
