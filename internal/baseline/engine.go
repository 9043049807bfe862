// Package baseline learns per-camera activity and detection class baselines
// with exponential time decay and scores new detections against them.
//
// An Engine keeps no mutable state of its own beyond a summary cache. Every
// baseline row lives in the datastore and is updated with optimistic
// concurrency, so any number of ingestion workers can share one Engine or
// run separate ones against the same database.
//
//	engine, err := baseline.New(baseline.DefaultConfig(), store)
//	err = engine.UpdateBaseline(ctx, baseline.SelfManaged{}, "front_door", "person", ts)
//	verdict, err := engine.IsAnomalous(ctx, "front_door", "vehicle", ts)
package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/datastore"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability/metrics"
)

// ErrUpdateConflict is returned when a baseline row kept changing under an
// update for the whole retry budget.
var ErrUpdateConflict = errors.NewStd("baseline update conflict")

// Engine updates, queries and scores baselines held in a datastore.
type Engine struct {
	cfg       Config
	threshold float64
	store     datastore.Interface
	clock     Clock
	log       logger.Logger
	metrics   *metrics.BaselineMetrics

	summaries   *cache.Cache // nil when caching is disabled
	loads       singleflight.Group
	generations generations
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used as the decay reference.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records update, verdict and cache metrics into m.
func WithMetrics(m *metrics.BaselineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New validates cfg and returns an Engine backed by store.
func New(cfg Config, store datastore.Interface, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.Newf("baseline engine requires a datastore").
			Component("baseline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	e := &Engine{
		cfg:       cfg,
		threshold: cfg.Threshold(),
		store:     store,
		clock:     SystemClock{},
		log:       getLog(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.SummaryCacheTTL > 0 {
		// expired entries are dropped on access; no janitor goroutine
		e.summaries = cache.New(cfg.SummaryCacheTTL, 0)
	}
	if e.metrics != nil {
		e.metrics.SetConfig(cfg.DecayFactor, e.threshold)
	}

	e.log.Debug("baseline engine created",
		logger.Float64("decay_factor", cfg.DecayFactor),
		logger.Int("window_days", cfg.WindowDays),
		logger.Float64("threshold", e.threshold),
		logger.Int("min_samples", cfg.MinSamples))
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Decay returns the weight remaining on a row last updated at last.
func (e *Engine) Decay(last, now time.Time) float64 { return e.cfg.Decay(last, now) }

// Threshold returns the anomaly score cutoff.
func (e *Engine) Threshold() float64 { return e.threshold }

// UpdateBaseline folds one detection into the activity baseline for the
// camera, hour and weekday of ts and into the class baseline for the camera,
// class and hour of ts. Hour and weekday are taken in ts's own location.
func (e *Engine) UpdateBaseline(ctx context.Context, scope TxScope, cameraID, detectionClass string, ts time.Time) error {
	detectionClass = e.normalizeClass(detectionClass)
	if err := validateDetection(cameraID, detectionClass, ts); err != nil {
		return err
	}

	start := e.clock.Now()
	obs := observation{
		cameraID:  cameraID,
		class:     detectionClass,
		hour:      ts.Hour(),
		dayOfWeek: int(ts.Weekday()),
		now:       start,
	}
	invalidate := func() { e.invalidateSummary(cameraID) }

	var err error
	switch s := scope.(type) {
	case SelfManaged:
		err = e.store.Transaction(ctx, func(tx *datastore.Tx) error {
			if err := e.apply(ctx, tx, obs); err != nil {
				return err
			}
			tx.AfterCommit(invalidate)
			return nil
		})
	case CallerTx:
		if s.Tx == nil {
			return validationError("caller transaction must not be nil", "scope", nil)
		}
		err = e.apply(ctx, s.Tx, obs)
		if err == nil {
			s.Tx.AfterCommit(invalidate)
		}
	default:
		return validationError("unsupported transaction scope", "scope", fmt.Sprintf("%T", scope))
	}

	if e.metrics != nil {
		e.metrics.RecordUpdateDuration(e.clock.Now().Sub(start).Seconds())
	}
	if err != nil {
		e.log.WithContext(ctx).Warn("baseline update failed",
			logger.String("camera_id", cameraID),
			logger.String("detection_class", detectionClass),
			logger.Error(err))
		return err
	}
	return nil
}

// observation is one detection resolved to its baseline keys
type observation struct {
	cameraID  string
	class     string
	hour      int
	dayOfWeek int
	now       time.Time
}

// apply updates the activity row and then the class row through repo
func (e *Engine) apply(ctx context.Context, repo datastore.Repository, obs observation) error {
	if err := e.fold(ctx, repo, metrics.StoreActivity, obs.now, func() datastore.Baseline {
		return datastore.NewActivityKey(obs.cameraID, obs.hour, obs.dayOfWeek)
	}); err != nil {
		return err
	}
	return e.fold(ctx, repo, metrics.StoreClass, obs.now, func() datastore.Baseline {
		return datastore.NewClassKey(obs.cameraID, obs.class, obs.hour)
	})
}

// fold merges one observation into the row produced by newKey. A lost
// insert race or a failed compare-and-swap reloads the row and tries again.
func (e *Engine) fold(ctx context.Context, repo datastore.Repository, store string, now time.Time, newKey func() datastore.Baseline) error {
	for attempt := 1; attempt <= e.cfg.MaxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("baseline").
				Category(errors.CategoryCancellation).
				Context("store", store).
				Build()
		}

		// a fresh struct each attempt; a stale primary key would narrow the lookup
		row := newKey()
		err := repo.LoadBaseline(ctx, row)
		switch {
		case errors.Is(err, datastore.ErrBaselineNotFound):
			firstObservation(row, now)
			inserted, err := repo.InsertBaseline(ctx, row)
			if err != nil {
				return err
			}
			if inserted {
				e.recordUpdate(store, metrics.OutcomeCreated)
				return nil
			}

		case err != nil:
			return err

		default:
			expected := row.Meta().Version
			outcome := mergeObservation(row, e.cfg.Decay(row.Meta().LastUpdated, now), now)
			swapped, err := repo.SwapBaseline(ctx, row, expected)
			if err != nil {
				return err
			}
			if swapped {
				e.recordUpdate(store, outcome)
				return nil
			}
		}

		if e.metrics != nil {
			e.metrics.RecordConflict(store)
		}
		e.log.WithContext(ctx).Debug("baseline row changed concurrently, retrying",
			logger.String("store", store),
			logger.Int("attempt", attempt))
	}

	return errors.New(fmt.Errorf("%w: %s row still contended after %d attempts", ErrUpdateConflict, store, e.cfg.MaxUpdateRetries)).
		Component("baseline").
		Category(errors.CategoryConflict).
		Context("store", store).
		Context("attempts", e.cfg.MaxUpdateRetries).
		Build()
}

// firstObservation initializes a row that has never been seen.
func firstObservation(row datastore.Baseline, now time.Time) {
	meta := row.Meta()
	row.SetValue(1.0)
	meta.SampleCount = 1
	meta.LastUpdated = now
	meta.Version = 1
}

// mergeObservation applies the EWMA step new = d*old + (1-d)*1 for decay d,
// or restarts the row when it has decayed to nothing.
func mergeObservation(row datastore.Baseline, d float64, now time.Time) string {
	meta := row.Meta()
	outcome := metrics.OutcomeUpdated
	if d > 0 {
		row.SetValue(d*row.Value() + (1-d)*1.0)
		meta.SampleCount++
	} else {
		row.SetValue(1.0)
		meta.SampleCount = 1
		outcome = metrics.OutcomeReset
	}
	meta.LastUpdated = now
	return outcome
}

func (e *Engine) recordUpdate(store, outcome string) {
	if e.metrics != nil {
		e.metrics.RecordUpdate(store, outcome)
	}
}

// GetActivityRate returns the decayed activity average for a camera at an
// hour (0-23) and weekday (0 is Sunday), or 0 when nothing has been learned.
func (e *Engine) GetActivityRate(ctx context.Context, cameraID string, hour, dayOfWeek int) (float64, error) {
	if err := validateCamera(cameraID); err != nil {
		return 0, err
	}
	if err := validateHour(hour); err != nil {
		return 0, err
	}
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return 0, validationError("day of week must be between 0 and 6", "day_of_week", dayOfWeek)
	}

	row := datastore.NewActivityKey(cameraID, hour, dayOfWeek)
	return e.decayedValue(ctx, row)
}

// GetClassFrequency returns the decayed frequency of a detection class for a
// camera at an hour, or 0 when nothing has been learned.
func (e *Engine) GetClassFrequency(ctx context.Context, cameraID, detectionClass string, hour int) (float64, error) {
	detectionClass = e.normalizeClass(detectionClass)
	if err := validateCamera(cameraID); err != nil {
		return 0, err
	}
	if detectionClass == "" {
		return 0, validationError("detection class must not be empty", "detection_class", detectionClass)
	}
	if err := validateHour(hour); err != nil {
		return 0, err
	}

	row := datastore.NewClassKey(cameraID, detectionClass, hour)
	return e.decayedValue(ctx, row)
}

func (e *Engine) decayedValue(ctx context.Context, row datastore.Baseline) (float64, error) {
	if err := e.store.LoadBaseline(ctx, row); err != nil {
		if errors.Is(err, datastore.ErrBaselineNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Value() * e.cfg.Decay(row.Meta().LastUpdated, e.clock.Now()), nil
}

func getLog() logger.Logger {
	return logger.Global().Module("baseline")
}
