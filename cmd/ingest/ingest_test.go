package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/baseline"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var monday = time.Date(2026, 3, 16, 14, 5, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (datastore.Interface, *baseline.Engine) {
	t.Helper()
	store := testutil.NewSQLiteStore(t)

	cfg := baseline.DefaultConfig()
	cfg.MinSamples = 1
	engine, err := baseline.New(cfg, store,
		baseline.WithClock(baseline.NewManualClock(monday)),
		baseline.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	return store, engine
}

func collect(t *testing.T, input, format string) ([]Detection, error) {
	t.Helper()
	var got []Detection
	err := readDetections(strings.NewReader(input), format, func(_ int, d Detection) error {
		got = append(got, d)
		return nil
	})
	return got, err
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	input := `camera_id,class,timestamp
# backfill from the porch recorder
front_door, person, 2026-03-16T14:05:00Z
porch,cat,2026-03-16T23:30:00-05:00
`
	got, err := collect(t, input, FormatCSV)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, Detection{CameraID: "front_door", Class: "person", Timestamp: monday}, got[0])
	assert.Equal(t, "porch", got[1].CameraID)
	// the offset is kept so hour and weekday follow local time
	assert.Equal(t, 23, got[1].Timestamp.Hour())
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"missing column", "front_door,person\n", "line 1"},
		{"bad timestamp", "front_door,person,2026-03-16T14:05:00Z\nfront_door,person,16/03/2026\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := collect(t, tt.input, FormatCSV)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestReadJSONL(t *testing.T) {
	t.Parallel()

	input := `{"camera_id":"front_door","class":"person","timestamp":"2026-03-16T14:05:00Z"}

{"camera_id":"garage","class":"vehicle","timestamp":"2026-03-16T15:00:00Z"}
`
	got, err := collect(t, input, FormatJSONL)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "garage", got[1].CameraID)

	_, err = collect(t, "{not json}\n", FormatJSONL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestResolveFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format, path, want string
	}{
		{FormatAuto, "detections.csv", FormatCSV},
		{FormatAuto, "detections.JSONL", FormatJSONL},
		{"", "detections.ndjson", FormatJSONL},
		{FormatAuto, "-", FormatCSV},
		{"json", "detections.csv", FormatJSONL},
		{"CSV", "detections.jsonl", FormatCSV},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.format, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.format, tt.path)
	}

	_, err := resolveFormat("parquet", "detections.parquet")
	require.Error(t, err)
}

func TestRunBatches(t *testing.T) {
	ctx := context.Background()
	store, engine := newTestEngine(t)

	input := strings.Repeat("front_door,person,2026-03-16T14:05:00Z\n", 5)
	result, err := Run(ctx, store, engine, strings.NewReader(input), FormatCSV, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Detections)
	assert.Equal(t, 3, result.Batches)
	assert.NotEmpty(t, result.TraceID)

	row := datastore.NewClassKey("front_door", "person", 14)
	require.NoError(t, store.LoadBaseline(ctx, row))
	assert.Equal(t, int64(5), row.SampleCount)

	camera, err := store.GetCamera(ctx, "front_door")
	require.NoError(t, err)
	assert.Equal(t, "front_door", camera.Name)
}

func TestRunRollsBackFailedBatch(t *testing.T) {
	ctx := context.Background()
	store, engine := newTestEngine(t)

	// the empty class fails the second batch after its first detection was applied
	input := `front_door,person,2026-03-16T14:05:00Z
front_door,person,2026-03-16T14:05:00Z
front_door,person,2026-03-16T14:05:00Z
front_door,,2026-03-16T14:05:00Z
`
	result, err := Run(ctx, store, engine, strings.NewReader(input), FormatCSV, 2, true)
	require.Error(t, err)
	assert.Equal(t, 2, result.Detections)

	row := datastore.NewClassKey("front_door", "person", 14)
	require.NoError(t, store.LoadBaseline(ctx, row))
	assert.Equal(t, int64(2), row.SampleCount)
}

func TestRunWithoutCameraCreation(t *testing.T) {
	ctx := context.Background()
	store, engine := newTestEngine(t)

	input := "garage,vehicle,2026-03-16T14:05:00Z\n"
	_, err := Run(ctx, store, engine, strings.NewReader(input), FormatCSV, 10, false)
	require.ErrorIs(t, err, datastore.ErrCameraNotFound)

	require.NoError(t, store.EnsureCamera(ctx, "garage", "Garage"))
	result, err := Run(ctx, store, engine, strings.NewReader(input), FormatCSV, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detections)
}

func TestRunRejectsBatchSize(t *testing.T) {
	store, engine := newTestEngine(t)
	_, err := Run(context.Background(), store, engine, strings.NewReader(""), FormatCSV, 0, true)
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	store, engine := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, store, engine, strings.NewReader("front_door,person,2026-03-16T14:05:00Z\n"), FormatCSV, 1, true)
	require.ErrorIs(t, err, context.Canceled)
}
