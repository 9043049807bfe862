// Package testutil provides shared test helpers: silent loggers and
// throwaway SQLite stores.
package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// DiscardLogger returns a logger that drops everything below error and
// writes nothing.
func DiscardLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// NewSQLiteStore opens a SQLite store in a temporary directory, registers
// cameras and closes the store when the test ends.
func NewSQLiteStore(t testing.TB, cameras ...string) datastore.Interface {
	t.Helper()

	store, err := datastore.Open(&conf.DatabaseSettings{
		Driver: conf.DriverSQLite,
		SQLite: conf.SQLiteSettings{Path: filepath.Join(t.TempDir(), "baseline.db")},
	}, datastore.WithLogger(DiscardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	for _, id := range cameras {
		require.NoError(t, store.EnsureCamera(context.Background(), id, ""))
	}
	return store
}
