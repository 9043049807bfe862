// Package runtime assembles the services a command runs against: logging,
// metrics, error telemetry, the datastore and the baseline engine.
package runtime

import (
	"fmt"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/baseline"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/buildinfo"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/telemetry"
)

// Commands request less than a full Start through this cobra annotation.
// Commands without it get every service.
const (
	AnnotationSetup = "setup"
	SetupNone       = "none"   // no settings, no services
	SetupConfig     = "config" // settings and logging only
)

// Runtime holds the process-wide services. Fields are nil until the
// corresponding Start step has run.
type Runtime struct {
	Build    *buildinfo.Context
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Store    datastore.Interface
	Engine   *baseline.Engine

	// MetricsTextfile, when set, receives a metrics snapshot on Close
	MetricsTextfile string

	central         *logger.CentralLogger
	engineOptions   []baseline.Option
	telemetryOpts   []telemetry.Option
	servicesStarted bool
}

// Option configures a Runtime
type Option func(*Runtime)

// WithEngineOptions appends options passed to baseline.New, after the
// runtime's own logger and metrics options.
func WithEngineOptions(opts ...baseline.Option) Option {
	return func(r *Runtime) { r.engineOptions = append(r.engineOptions, opts...) }
}

// WithTelemetryOptions passes options to telemetry.Init.
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(r *Runtime) { r.telemetryOpts = append(r.telemetryOpts, opts...) }
}

// New returns an idle Runtime for the given build.
func New(build *buildinfo.Context, opts ...Option) *Runtime {
	r := &Runtime{Build: build}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure installs settings and the logger they describe. It is enough for
// commands that only display configuration.
func (r *Runtime) Configure(settings *conf.Settings) error {
	if settings == nil {
		return errors.Newf("runtime requires settings").
			Component("runtime").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return errors.New(fmt.Errorf("failed to initialize logging: %w", err)).
			Component("runtime").
			Category(errors.CategoryConfiguration).
			Build()
	}
	logger.SetGlobal(central)

	r.Settings = settings
	r.central = central
	return nil
}

// Start configures the runtime from settings and brings up metrics,
// telemetry, the datastore and the engine.
func (r *Runtime) Start(settings *conf.Settings) error {
	if err := r.Configure(settings); err != nil {
		return err
	}
	log := getLog()

	if err := telemetry.Init(&settings.Telemetry, r.Build.GetVersion(), r.telemetryOpts...); err != nil {
		// error reporting is optional; keep running without it
		log.Warn("telemetry disabled", logger.Error(err))
	}
	r.servicesStarted = true

	storeOpts := []datastore.Option{datastore.WithLogger(logger.Global().Module("datastore"))}
	engineOpts := []baseline.Option{baseline.WithLogger(logger.Global().Module("baseline"))}
	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return errors.New(err).
				Component("runtime").
				Category(errors.CategorySystem).
				Build()
		}
		r.Metrics = m
		storeOpts = append(storeOpts, datastore.WithMetrics(m.Datastore))
		engineOpts = append(engineOpts, baseline.WithMetrics(m.Baseline))
	}

	store, err := datastore.Open(&settings.Database, storeOpts...)
	if err != nil {
		return err
	}
	r.Store = store

	engine, err := baseline.New(baseline.ConfigFromSettings(&settings.Baseline), store, append(engineOpts, r.engineOptions...)...)
	if err != nil {
		return err
	}
	r.Engine = engine

	log.Debug("runtime started",
		logger.String("version", r.Build.GetVersion()),
		logger.String("instance_id", r.Build.GetInstanceID()),
		logger.String("driver", store.Dialect()))
	return nil
}

// Close writes the metrics textfile, closes the datastore, flushes
// telemetry and closes log outputs. It is safe to call on a partly started
// runtime.
func (r *Runtime) Close() error {
	var errs []error

	if r.Metrics != nil && r.MetricsTextfile != "" {
		if err := r.Metrics.WriteTextfile(r.MetricsTextfile); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, err)
		}
		r.Store = nil
	}
	r.Engine = nil
	if r.servicesStarted {
		telemetry.Shutdown()
		r.servicesStarted = false
	}
	if r.central != nil {
		if err := r.central.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := r.central.Close(); err != nil {
			errs = append(errs, err)
		}
		r.central = nil
	}

	return errors.Join(errs...)
}

func getLog() logger.Logger {
	return logger.Global().Module("runtime")
}
