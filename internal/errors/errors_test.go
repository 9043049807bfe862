package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("boom")).Build()

	assert.Equal(t, "boom", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildWithContext(t *testing.T) {
	t.Parallel()

	ee := Newf("load failed for %s", "cam-1").
		Component("datastore").
		Category(CategoryDatabase).
		Priority(PriorityHigh).
		Context("camera_id", "cam-1").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.Equal(t, "database", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, "cam-1", ee.GetContext()["camera_id"])

	// returned context is a copy
	ctx := ee.GetContext()
	ctx["camera_id"] = "changed"
	assert.Equal(t, "cam-1", ee.GetContext()["camera_id"])
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestUnwrapKeepsSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	wrapped := New(fmt.Errorf("outer: %w", sentinel)).Category(CategoryNotFound).Build()

	require.ErrorIs(t, wrapped, sentinel)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.True(t, Is(wrapped, &EnhancedError{Category: CategoryNotFound}))
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"context deadline exceeded", CategoryTimeout},
		{"context canceled", CategoryCancellation},
		{"sql: connection is already closed", CategoryDatabase},
		{"camera not found", CategoryNotFound},
		{"hour must be between 0 and 23", CategoryValidation},
		{"something odd", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(NewStd(tt.msg)).Build().Category)
		})
	}
}

// Not parallel: swaps the package-level reporter.
func TestReporterReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("reported")).Category(CategoryDatabase).Build()

	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.True(t, ee.IsReported())
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	got := scrubMessage("dial postgres://baseline:hunter2@db:5432/baseline failed, password=hunter2")
	assert.NotContains(t, got, "hunter2")
	assert.Contains(t, got, "baseline:[REDACTED]@")
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "load_baseline").
		Build()

	assert.Equal(t, "Datastore Database Error Load Baseline", generateErrorTitle(ee))
}
