package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/baseline"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/buildinfo"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/runtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testConfig = `baseline:
  minsamples: 1
database:
  driver: sqlite
  sqlite:
    path: %s
logging:
  default_level: error
  console:
    enabled: false
metrics:
  enabled: true
`

// writeConfig creates a config file pointing at a fresh SQLite database
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(testConfig, filepath.Join(dir, "baseline.db")) + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs one CLI invocation the way main does and returns its stdout
func execute(t *testing.T, configPath string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	rt := runtime.New(buildinfo.NewContext("1.0.0", "2026-03-01"))
	root := RootCommand(viper.New(), rt)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(append([]string{"--config", configPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), errors.Join(err, rt.Close())
}

func parseNumber(t *testing.T, out string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	require.NoError(t, err)
	return v
}

func TestVersionSkipsSetup(t *testing.T) {
	out, err := execute(t, filepath.Join(t.TempDir(), "missing.yaml"), nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "baseline 1.0.0 (built 2026-03-01)\n", out)
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	cfg := writeConfig(t, `telemetry:
  enabled: false
  dsn: https://key@example.invalid/1
`)
	out, err := execute(t, cfg, nil, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "key@example.invalid")

	// config show does not open the database
	_, statErr := os.Stat(filepath.Join(filepath.Dir(cfg), "baseline.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestThenQuery(t *testing.T) {
	cfg := writeConfig(t, "")
	ts := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	stamp := ts.Format(time.RFC3339)

	var input strings.Builder
	input.WriteString("camera_id,class,timestamp\n")
	for range 3 {
		fmt.Fprintf(&input, "front_door,person,%s\n", stamp)
	}
	fmt.Fprintf(&input, "garage,vehicle,%s\n", stamp)

	out, err := execute(t, cfg, strings.NewReader(input.String()), "ingest", "-", "--batch-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 4 detections in 2 batches")

	out, err = execute(t, cfg, nil, "frequency", "front_door", "person", strconv.Itoa(ts.Hour()))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, parseNumber(t, out), 1e-3)

	out, err = execute(t, cfg, nil, "rate", "front_door", strconv.Itoa(ts.Hour()), strconv.Itoa(int(ts.Weekday())))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, parseNumber(t, out), 1e-3)

	out, err = execute(t, cfg, nil, "score", "front_door", "dog", stamp)
	require.NoError(t, err)
	var verdict baseline.Verdict
	require.NoError(t, yaml.Unmarshal([]byte(out), &verdict))
	assert.True(t, verdict.Anomalous)
	assert.InDelta(t, baseline.UnseenScore, verdict.Score, 1e-9)

	out, err = execute(t, cfg, nil, "summary", "front_door", "-o", "json")
	require.NoError(t, err)
	var summary baseline.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "front_door", summary.CameraID)
	assert.Equal(t, int64(3), summary.TotalClassSamples)
	require.Len(t, summary.TopClasses, 1)
	assert.Equal(t, "person", summary.TopClasses[0].Class)

	out, err = execute(t, cfg, nil, "camera", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "id: front_door")
	assert.Contains(t, out, "id: garage")
}

func TestIngestStopsAtBadRecord(t *testing.T) {
	cfg := writeConfig(t, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "detections.jsonl")
	content := `{"camera_id":"front_door","class":"person","timestamp":"2026-03-16T14:05:00Z"}
{"camera_id":"front_door","class":"person","timestamp":"yesterday"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := execute(t, cfg, nil, "ingest", path, "--batch-size", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	// the first batch was committed before the failure
	out, err := execute(t, cfg, nil, "camera", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "id: front_door")
}

func TestCameraLifecycle(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, cfg, nil, "camera", "add", "porch", "Back Porch")
	require.NoError(t, err)
	assert.Equal(t, "camera porch saved\n", out)

	out, err = execute(t, cfg, nil, "camera", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Back Porch")

	_, err = execute(t, cfg, nil, "camera", "delete", "porch")
	require.NoError(t, err)

	_, err = execute(t, cfg, nil, "camera", "delete", "porch")
	require.ErrorIs(t, err, datastore.ErrCameraNotFound)
}

func TestQueryArgumentErrors(t *testing.T) {
	cfg := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"hour not a number", []string{"rate", "front_door", "noon", "1"}},
		{"hour out of range", []string{"frequency", "front_door", "person", "24"}},
		{"bad timestamp", []string{"score", "front_door", "person", "now"}},
		{"bad output format", []string{"summary", "front_door", "-o", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, cfg, nil, tt.args...)
			require.Error(t, err)
		})
	}
}

func TestMetricsTextfile(t *testing.T) {
	cfg := writeConfig(t, "")
	textfile := filepath.Join(t.TempDir(), "baseline.prom")

	_, err := execute(t, cfg, nil, "--metrics-textfile", textfile, "camera", "add", "porch")
	require.NoError(t, err)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "datastore_db_operations_total")
}

func TestDriverFlagOverridesConfig(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, cfg, nil, "--driver", "oracle", "camera", "list")
	require.Error(t, err)
}
