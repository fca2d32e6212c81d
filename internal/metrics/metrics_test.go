package metrics_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) metrics.Config {
	t.Helper()
	cfg := metrics.DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "metrics.db")
	cfg.BatchSize = 2
	cfg.BatchTimeout = 0
	return cfg
}

func snapshot(chip string, score int, at time.Time) *metrics.Snapshot {
	return &metrics.Snapshot{
		Timestamp:      at,
		Chip:           chip,
		Voltage:        3.3,
		Temperature:    25,
		Current:        1,
		Status:         0,
		ValidRegisters: 16,
		HealthScore:    score,
		Active:         true,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := metrics.DefaultConfig()
	assert.NoError(t, cfg.Validate(), "disabled config skips storage checks")

	cfg.Enabled = true
	cfg.DBPath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))

	cfg.DBPath = "/tmp/x.db"
	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())
}

func TestNewServiceDisabledIsNoop(t *testing.T) {
	c, err := metrics.NewService(metrics.DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, c.Record(context.Background(), snapshot("chip0", 100, time.Now())))
	assert.NoError(t, c.Close())
}

func TestNoopAcceptsAnything(t *testing.T) {
	c := metrics.Noop()
	assert.NoError(t, c.Record(context.Background(), nil))
	assert.NoError(t, c.Close())
}

func TestRepositoryRecordAndRecent(t *testing.T) {
	repo, err := metrics.NewRepository(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	base := time.Unix(1700000000, 0)
	require.NoError(t, repo.Record(snapshot("chip0", 100, base)))
	require.NoError(t, repo.Record(snapshot("chip1", 90, base.Add(time.Second))))
	require.NoError(t, repo.Record(snapshot("chip0", 70, base.Add(2*time.Second))))

	got, err := repo.Recent("chip0", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 70, got[0].HealthScore, "newest first")
	assert.Equal(t, 100, got[1].HealthScore)
	assert.True(t, got[0].Timestamp.Equal(base.Add(2*time.Second)))
	assert.True(t, got[0].Active)
	assert.False(t, got[0].Recovered)
	assert.InDelta(t, 3.3, got[0].Voltage, 1e-9)

	got, err = repo.Recent("chip0", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	cfg := testConfig(t)

	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Record(snapshot("chip0", 55, time.Now())))
	require.NoError(t, repo.Close())

	repo, err = metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Recent("chip0", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 55, got[0].HealthScore)
}

func TestRepositoryCloseIsIdempotent(t *testing.T) {
	repo, err := metrics.NewRepository(testConfig(t), logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, repo.Close())
	assert.NoError(t, repo.Close())
}

func TestSchemaVersionMismatchCreatesBackup(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'))`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := metrics.NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	entries, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "metrics_v99_")

	require.NoError(t, repo.Record(snapshot("chip0", 100, time.Now())))
	got, err := repo.Recent("chip0", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestServiceRecordHonoursContext(t *testing.T) {
	c, err := metrics.NewService(testConfig(t), logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Record(ctx, snapshot("chip0", 100, time.Now()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrOperationTimeout))

	err = c.Record(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidMetrics))
}
