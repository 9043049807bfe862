package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
)

// These tests share the global Sentry hub and reporter and run sequentially.

func TestInitDisabled(t *testing.T) {
	require.NoError(t, Init(&conf.TelemetrySettings{Enabled: false}, "test"))
	assert.False(t, IsEnabled())
	assert.Nil(t, errors.GetTelemetryReporter())
	assert.True(t, Flush())

	require.NoError(t, Init(nil, "test"))
}

func TestInitReportsBuiltErrors(t *testing.T) {
	transport := NewMockTransport()
	require.NoError(t, Init(&conf.TelemetrySettings{Enabled: true, Environment: "test"}, "test", WithTransport(transport)))
	t.Cleanup(Shutdown)
	assert.True(t, IsEnabled())

	_ = errors.Newf("dial mysql://baseline:hunter2@db:3306 failed").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
	require.True(t, Flush())

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "datastore", events[0].Tags["component"])
	assert.NotContains(t, events[0].Message, "hunter2")
	assert.Empty(t, events[0].ServerName)
}

func TestBeforeSendScrubs(t *testing.T) {
	event := &sentry.Event{
		Message:    "password=secret",
		ServerName: "host-1",
		Exception:  []sentry.Exception{{Value: "postgres://u:pw@db/x"}},
	}
	out := beforeSend(event, nil)
	assert.Equal(t, "password=[REDACTED]", out.Message)
	assert.Equal(t, "postgres://u:[REDACTED]@db/x", out.Exception[0].Value)
	assert.Empty(t, out.ServerName)
}
