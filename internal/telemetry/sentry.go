// Package telemetry initializes Sentry error reporting and connects it to the
// internal errors package.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// flushTimeout bounds how long shutdown waits for queued events
const flushTimeout = 2 * time.Second

var sentryInitialized atomic.Bool

// Option adjusts the Sentry client options before Init
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, e.g. with a recording one in tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// Init configures Sentry from settings and installs the error reporter.
// It does nothing when telemetry is disabled.
func Init(settings *conf.TelemetrySettings, release string, opts ...Option) error {
	if settings == nil || !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		return nil
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		Debug:            settings.Debug,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "", // keep the hostname out of events
		Release:          fmt.Sprintf("baseline@%s", release),
		BeforeSend:       beforeSend,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentryInitialized.Store(true)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	getLog().Info("error telemetry enabled", logger.String("environment", environment))
	return nil
}

// beforeSend strips host and request details and scrubs credentials
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.Request = nil
	event.Modules = nil
	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}
	return event
}

// IsEnabled reports whether Init installed Sentry.
func IsEnabled() bool {
	return sentryInitialized.Load()
}

// Flush waits for queued events to be sent.
func Flush() bool {
	if !sentryInitialized.Load() {
		return true
	}
	return sentry.Flush(flushTimeout)
}

// Shutdown flushes pending events and detaches the reporter.
func Shutdown() {
	if !sentryInitialized.Swap(false) {
		return
	}
	sentry.Flush(flushTimeout)
	errors.SetTelemetryReporter(nil)
}

func getLog() logger.Logger {
	return logger.Global().Module("telemetry")
}
