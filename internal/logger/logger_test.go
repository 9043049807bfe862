package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.Debug("hidden")
	log.Trace("hidden")
	log.Info("shown", String("camera_id", "cam-1"), Int("hour", 14))
	log.Log(LogLevelDebug, "hidden")
	log.Log(LogLevelWarn, "also shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "cam-1", lines[0]["camera_id"])
	assert.InDelta(t, 14, lines[0]["hour"], 0)
	assert.Equal(t, "WARN", lines[1]["level"])
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	root := NewSlogLogger(buf, LogLevelDebug, time.UTC)

	log := root.Module("baseline").Module("engine").With(String("store", "class"))
	log.Debug("updated", Float64("value", 0.123456), Duration("elapsed", 1500*time.Microsecond))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "baseline.engine", lines[0]["module"])
	assert.Equal(t, "class", lines[0]["store"])
	assert.InDelta(t, 0.123, lines[0]["value"], 1e-9)
	assert.Equal(t, "2ms", lines[0]["elapsed"])
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	ctx := WithTraceID(context.Background(), "trace-42")
	assert.Equal(t, "trace-42", TraceIDFromContext(ctx))

	log.WithContext(ctx).Info("with trace")
	log.WithContext(context.Background()).Info("without trace")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "trace-42", lines[0]["trace_id"])
	assert.NotContains(t, lines[1], "trace_id")
}

func TestTextHandlerFormat(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := newTextHandler(buf, slog.LevelInfo, time.UTC)
	l := &moduleLogger{module: "datastore", logger: slog.New(h), level: slog.LevelInfo}

	l.Info("opened database", String("driver", "sqlite"), String("path", "a b.db"))

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[datastore] opened database")
	assert.Contains(t, out, "driver=sqlite")
	assert.Contains(t, out, `path="a b.db"`)
}

func TestCentralLoggerModuleLevels(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "baseline.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "warn",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "warn"},
		ModuleLevels: map[string]string{"baseline": "debug"},
	})
	require.NoError(t, err)

	cl.Module("baseline").Debug("baseline debug")
	cl.Module("datastore").Info("datastore info")
	cl.Module("datastore").Warn("datastore warn")

	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 2)
	assert.Equal(t, "baseline debug", lines[0]["msg"])
	assert.Equal(t, "datastore warn", lines[1]["msg"])
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestGormAdapterTrace(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	var observed []string
	adapter := NewGormLoggerAdapter(NewSlogLogger(buf, LogLevelTrace, time.UTC), 10*time.Millisecond,
		func(sql string, _ int64, _ time.Duration, _ error) { observed = append(observed, sql) })

	fc := func(sql string) func() (string, int64) {
		return func() (string, int64) { return sql, 1 }
	}

	adapter.Trace(context.Background(), time.Now(), fc("SELECT 1"), nil)
	adapter.Trace(context.Background(), time.Now(), fc("SELECT 2"), gorm.ErrRecordNotFound)
	adapter.Trace(context.Background(), time.Now(), fc("SELECT 3"), assert.AnError)
	adapter.Trace(context.Background(), time.Now().Add(-time.Second), fc("SELECT 4"), nil)

	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4"}, observed)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "sql query", lines[0]["msg"])
	assert.Equal(t, "sql query", lines[1]["msg"])
	assert.Equal(t, "query error", lines[2]["msg"])
	assert.Equal(t, "slow query", lines[3]["msg"])
}
