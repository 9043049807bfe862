package datastore

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability/metrics"
)

// leakOptions is extended by tests that start long-lived helper goroutines
var leakOptions []goleak.Option

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, leakOptions...)
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// newTestStore opens a migrated SQLite database in a temporary directory.
// A file is used instead of :memory: because each pooled connection would
// otherwise see its own empty database.
func newTestStore(t *testing.T, opts ...Option) Interface {
	t.Helper()

	settings := &conf.DatabaseSettings{
		Driver: conf.DriverSQLite,
		SQLite: conf.SQLiteSettings{Path: filepath.Join(t.TempDir(), "baseline.db")},
	}
	opts = append([]Option{WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))}, opts...)

	store, err := Open(settings, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	require.NoError(t, store.EnsureCamera(context.Background(), "front_door", "Front Door"))
	return store
}

func newActivityRow(cameraID string, hour, dow int, value float64) *ActivityBaseline {
	b := NewActivityKey(cameraID, hour, dow)
	b.AvgCount = value
	b.SampleCount = 1
	b.LastUpdated = testNow
	b.Version = 1
	return b
}

func newClassRow(cameraID, class string, hour int, value float64) *ClassBaseline {
	b := NewClassKey(cameraID, class, hour)
	b.Frequency = value
	b.SampleCount = 1
	b.LastUpdated = testNow
	b.Version = 1
	return b
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := New(&conf.DatabaseSettings{Driver: "oracle"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = New(nil)
	require.Error(t, err)
}

func TestDialectOpenersValidate(t *testing.T) {
	t.Parallel()

	store, err := New(&conf.DatabaseSettings{Driver: conf.DriverSQLite})
	require.NoError(t, err)
	assert.True(t, errors.IsValidation(store.Open()))

	store, err = New(&conf.DatabaseSettings{Driver: conf.DriverMySQL})
	require.NoError(t, err)
	assert.True(t, errors.IsValidation(store.Open()))

	store, err = New(&conf.DatabaseSettings{Driver: conf.DriverPostgres, Postgres: conf.PostgresSettings{Host: "db"}})
	require.NoError(t, err)
	assert.True(t, errors.IsValidation(store.Open()))
}

func TestDSNs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:/tmp/b.db?"+sqliteParams, sqliteDSN("/tmp/b.db"))
	assert.Equal(t, "u:p@tcp(db:3306)/baselines?charset=utf8mb4&parseTime=True&loc=UTC",
		mysqlDSN(&conf.MySQLSettings{Host: "db", Port: "3306", Username: "u", Password: "p", Database: "baselines"}))
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=baselines sslmode=disable TimeZone=UTC",
		postgresDSN(&conf.PostgresSettings{Host: "db", Port: "5432", Username: "u", Password: "p", Database: "baselines"}))
}

func TestUnopenedStoreReturnsNotInitialized(t *testing.T) {
	t.Parallel()

	store, err := New(&conf.DatabaseSettings{Driver: conf.DriverSQLite})
	require.NoError(t, err)

	err = store.LoadBaseline(context.Background(), NewActivityKey("front_door", 1, 1))
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = store.Begin(context.Background())
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, store.Close())
}

func TestInsertLoadSwap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)
	assert.Equal(t, "sqlite", store.Dialect())

	inserted, err := store.InsertBaseline(ctx, newActivityRow("front_door", 0, 0, 1.0))
	require.NoError(t, err)
	assert.True(t, inserted)

	// a second insert of the same key loses the race
	inserted, err = store.InsertBaseline(ctx, newActivityRow("front_door", 0, 0, 7.0))
	require.NoError(t, err)
	assert.False(t, inserted)

	loaded := NewActivityKey("front_door", 0, 0)
	require.NoError(t, store.LoadBaseline(ctx, loaded))
	assert.InDelta(t, 1.0, loaded.AvgCount, 1e-9)
	assert.Equal(t, int64(1), loaded.SampleCount)
	assert.Equal(t, int64(1), loaded.Version)
	assert.True(t, testNow.Equal(loaded.LastUpdated))

	// hour 0 must not match a row for hour 1
	err = store.LoadBaseline(ctx, NewActivityKey("front_door", 1, 0))
	require.ErrorIs(t, err, ErrBaselineNotFound)
	assert.True(t, errors.IsNotFound(err))

	loaded.AvgCount = 0.5
	loaded.SampleCount = 2
	swapped, err := store.SwapBaseline(ctx, loaded, 1)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, int64(2), loaded.Version)

	// a writer still holding version 1 is refused
	stale := NewActivityKey("front_door", 0, 0)
	stale.ID = loaded.ID
	stale.AvgCount = 9
	swapped, err = store.SwapBaseline(ctx, stale, 1)
	require.NoError(t, err)
	assert.False(t, swapped)

	final := NewActivityKey("front_door", 0, 0)
	require.NoError(t, store.LoadBaseline(ctx, final))
	assert.InDelta(t, 0.5, final.AvgCount, 1e-9)
	assert.Equal(t, int64(2), final.SampleCount)
	assert.Equal(t, int64(2), final.Version)
}

func TestInsertForUnknownCamera(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.InsertBaseline(context.Background(), newClassRow("garage", "person", 3, 1.0))
	require.ErrorIs(t, err, ErrCameraNotFound)
}

func TestListClassBaselines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	for _, row := range []*ClassBaseline{
		newClassRow("front_door", "vehicle", 14, 0.4),
		newClassRow("front_door", "person", 14, 0.6),
		newClassRow("front_door", "person", 15, 0.2),
	} {
		ok, err := store.InsertBaseline(ctx, row)
		require.NoError(t, err)
		require.True(t, ok)
	}

	byHour, err := store.ListClassBaselinesByHour(ctx, "front_door", 14)
	require.NoError(t, err)
	require.Len(t, byHour, 2)
	assert.Equal(t, "person", byHour[0].DetectionClass)
	assert.Equal(t, "vehicle", byHour[1].DetectionClass)

	all, err := store.ListClassBaselines(ctx, "front_door")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ListClassBaselinesByHour(ctx, "front_door", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClassKeysAreCaseSensitive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	for _, class := range []string{"Person", "person"} {
		ok, err := store.InsertBaseline(ctx, newClassRow("front_door", class, 14, 1))
		require.NoError(t, err)
		assert.True(t, ok, class)
	}
	rows, err := store.ListClassBaselinesByHour(ctx, "front_door", 14)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = store.InsertBaseline(ctx, newClassRow("FRONT_DOOR", "person", 14, 1))
	require.ErrorIs(t, err, ErrCameraNotFound)
}

func TestCameraLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveCamera(ctx, &Camera{ID: "backyard", Name: "Backyard"}))
	require.NoError(t, store.SaveCamera(ctx, &Camera{ID: "backyard", Name: "Back Yard"}))
	require.NoError(t, store.EnsureCamera(ctx, "backyard", "ignored"))

	cam, err := store.GetCamera(ctx, "backyard")
	require.NoError(t, err)
	assert.Equal(t, "Back Yard", cam.Name)

	cameras, err := store.ListCameras(ctx)
	require.NoError(t, err)
	require.Len(t, cameras, 2)
	assert.Equal(t, "backyard", cameras[0].ID)
	assert.Equal(t, "front_door", cameras[1].ID)

	assert.True(t, errors.IsValidation(store.SaveCamera(ctx, &Camera{})))
	assert.True(t, errors.IsValidation(store.EnsureCamera(ctx, string(make([]byte, 65)), "")))

	_, err = store.GetCamera(ctx, "attic")
	require.ErrorIs(t, err, ErrCameraNotFound)
	require.ErrorIs(t, store.DeleteCamera(ctx, "attic"), ErrCameraNotFound)
}

func TestDeleteCameraCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.InsertBaseline(ctx, newActivityRow("front_door", 8, 2, 1))
	require.NoError(t, err)
	_, err = store.InsertBaseline(ctx, newClassRow("front_door", "person", 8, 1))
	require.NoError(t, err)

	require.NoError(t, store.DeleteCamera(ctx, "front_door"))

	activity, err := store.ListActivityBaselines(ctx, "front_door")
	require.NoError(t, err)
	assert.Empty(t, activity)
	classes, err := store.ListClassBaselines(ctx, "front_door")
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestTransactionCommitRunsHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	var fired []string
	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	_, err = tx.InsertBaseline(ctx, newActivityRow("front_door", 5, 1, 1))
	require.NoError(t, err)
	tx.AfterCommit(func() { fired = append(fired, "first") })
	tx.AfterCommit(func() { fired = append(fired, "second") })
	assert.Empty(t, fired)

	require.NoError(t, tx.Commit())
	assert.Equal(t, []string{"first", "second"}, fired)
	require.ErrorIs(t, tx.Commit(), ErrTxDone)
	require.NoError(t, tx.Rollback())

	require.NoError(t, store.LoadBaseline(ctx, NewActivityKey("front_door", 5, 1)))

	// outside a transaction hooks run at once
	ran := false
	store.AfterCommit(func() { ran = true })
	assert.True(t, ran)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	hookRan := false
	err := store.Transaction(ctx, func(tx *Tx) error {
		tx.AfterCommit(func() { hookRan = true })
		if _, err := tx.InsertBaseline(ctx, newActivityRow("front_door", 6, 1, 1)); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, hookRan)

	err = store.LoadBaseline(ctx, NewActivityKey("front_door", 6, 1))
	require.ErrorIs(t, err, ErrBaselineNotFound)
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	assert.Panics(t, func() {
		_ = store.Transaction(ctx, func(tx *Tx) error {
			_, _ = tx.InsertBaseline(ctx, newActivityRow("front_door", 7, 1, 1))
			panic("boom")
		})
	})

	err := store.LoadBaseline(ctx, NewActivityKey("front_door", 7, 1))
	require.ErrorIs(t, err, ErrBaselineNotFound)
}

func TestQueryMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	store := newTestStore(t, WithMetrics(m.Datastore))

	require.NoError(t, store.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.InsertBaseline(ctx, newClassRow("front_door", "person", 1, 1))
		return err
	}))
	_, err = store.SwapBaseline(ctx, newClassRow("front_door", "person", 1, 1), 42)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(m.Registry(),
		"datastore_db_operations_total",
		"datastore_db_transactions_total",
		"datastore_db_transaction_retries_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestParseSQLOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sql       string
		operation string
		table     string
	}{
		{"SELECT * FROM `class_baselines` WHERE camera_id = ?", metrics.OpDbQuery, "class_baselines"},
		{`INSERT INTO "activity_baselines" ("camera_id") VALUES ($1)`, metrics.OpDbInsert, "activity_baselines"},
		{"UPDATE class_baselines SET frequency=0.5", metrics.OpDbUpdate, "class_baselines"},
		{"DELETE FROM cameras WHERE id = 'x'", metrics.OpDbDelete, "cameras"},
		{"PRAGMA foreign_keys", metrics.OpDbOther, sqlUnknown},
	}

	for _, tt := range tests {
		op, table := parseSQLOperation(tt.sql)
		assert.Equal(t, tt.operation, op, tt.sql)
		assert.Equal(t, tt.table, table, tt.sql)
	}
}

func TestCategorizeError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", categorizeError(nil))
	assert.Equal(t, "database_locked", categorizeError(errors.NewStd("database is locked")))
	assert.Equal(t, "timeout", categorizeError(errors.NewStd("context deadline exceeded")))
	assert.Equal(t, "foreign_key_violation", categorizeError(errors.NewStd("FOREIGN KEY constraint failed")))
	assert.Equal(t, "other", categorizeError(assert.AnError))
}
