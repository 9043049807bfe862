package baseline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
)

// ErrInvalidConfig is matched by every configuration error returned by Validate and New.
var ErrInvalidConfig = errors.NewStd("invalid baseline configuration")

// Config holds the decay and scoring parameters of an Engine.
type Config struct {
	// DecayFactor is the weight multiplier applied per elapsed day, in (0, 1].
	DecayFactor float64
	// WindowDays is the age in days past which a row carries no weight.
	WindowDays int
	// AnomalyThresholdStd maps onto the score cutoff 1 - 1/(std+1).
	AnomalyThresholdStd float64
	// MinSamples is the number of observations at an hour required before scoring.
	MinSamples int

	MaxUpdateRetries int
	SummaryCacheTTL  time.Duration // 0 disables the summary cache
	NormalizeClasses bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DecayFactor:         0.95,
		WindowDays:          30,
		AnomalyThresholdStd: 2.0,
		MinSamples:          10,
		MaxUpdateRetries:    8,
		SummaryCacheTTL:     30 * time.Second,
	}
}

// ConfigFromSettings converts the loaded application settings.
func ConfigFromSettings(s *conf.BaselineSettings) Config {
	return Config{
		DecayFactor:         s.DecayFactor,
		WindowDays:          s.WindowDays,
		AnomalyThresholdStd: s.AnomalyThresholdStd,
		MinSamples:          s.MinSamples,
		MaxUpdateRetries:    s.MaxUpdateRetries,
		SummaryCacheTTL:     s.SummaryCacheTTL,
		NormalizeClasses:    s.NormalizeClasses,
	}
}

// Validate reports every out-of-range parameter in a single validation error.
// Values are never clamped.
func (c Config) Validate() error {
	var violations []string

	if math.IsNaN(c.DecayFactor) || c.DecayFactor <= 0 || c.DecayFactor > 1 {
		violations = append(violations, fmt.Sprintf("decay_factor must be in (0, 1], got %v", c.DecayFactor))
	}
	if c.WindowDays < 1 {
		violations = append(violations, fmt.Sprintf("window_days must be at least 1, got %d", c.WindowDays))
	}
	if math.IsNaN(c.AnomalyThresholdStd) || c.AnomalyThresholdStd < 0 {
		violations = append(violations, fmt.Sprintf("anomaly_threshold_std must be non-negative, got %v", c.AnomalyThresholdStd))
	}
	if c.MinSamples < 1 {
		violations = append(violations, fmt.Sprintf("min_samples must be at least 1, got %d", c.MinSamples))
	}
	if c.MaxUpdateRetries < 1 {
		violations = append(violations, fmt.Sprintf("max_update_retries must be at least 1, got %d", c.MaxUpdateRetries))
	}
	if c.SummaryCacheTTL < 0 {
		violations = append(violations, fmt.Sprintf("summary_cache_ttl must not be negative, got %s", c.SummaryCacheTTL))
	}

	if len(violations) == 0 {
		return nil
	}
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(violations, "; "))).
		Component("baseline").
		Category(errors.CategoryValidation).
		Context("violations", violations).
		Build()
}

// Decay returns the weight left on a row last updated at last, seen from now.
// Both instants are compared in UTC. Negative elapsed time counts as zero, and
// rows older than WindowDays weigh nothing.
func (c Config) Decay(last, now time.Time) float64 {
	days := now.UTC().Sub(last.UTC()).Hours() / 24
	if days < 0 {
		days = 0
	}
	if days > float64(c.WindowDays) {
		return 0
	}
	return math.Pow(c.DecayFactor, days)
}

// Threshold is the score an observation must exceed to be anomalous.
func (c Config) Threshold() float64 {
	return 1 - 1/(c.AnomalyThresholdStd+1)
}
