package baseline

import (
	"context"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability/metrics"
)

// Scores returned for special cases
const (
	NeutralScore   = 0.5
	UnseenScore    = 1.0
	DecayedScore   = 0.95
	minAnomalyRank = 0.0
	maxAnomalyRank = 1.0
)

// Verdict is the result of scoring one detection.
//
// A Neutral verdict means there was not enough history to judge. It always
// has Anomalous false and Score 0.5, and callers must not read it as normal.
type Verdict struct {
	Anomalous bool    `json:"anomalous" yaml:"anomalous"`
	Score     float64 `json:"score" yaml:"score"`
	Neutral   bool    `json:"neutral" yaml:"neutral"`
}

func neutralVerdict() Verdict {
	return Verdict{Anomalous: false, Score: NeutralScore, Neutral: true}
}

// IsAnomalous scores how unusual detectionClass is for the camera at the
// hour of ts, relative to every class seen at that hour. It never writes.
func (e *Engine) IsAnomalous(ctx context.Context, cameraID, detectionClass string, ts time.Time) (Verdict, error) {
	detectionClass = e.normalizeClass(detectionClass)
	if err := validateDetection(cameraID, detectionClass, ts); err != nil {
		return Verdict{}, err
	}
	hour := ts.Hour()

	rows, err := e.store.ListClassBaselinesByHour(ctx, cameraID, hour)
	if err != nil {
		return Verdict{}, err
	}

	log := e.log.WithContext(ctx).With(
		logger.String("camera_id", cameraID),
		logger.String("detection_class", detectionClass),
		logger.Int("hour", hour))

	if len(rows) == 0 {
		log.Debug("no class baselines at this hour, verdict neutral")
		return e.recordVerdict(neutralVerdict()), nil
	}

	now := e.clock.Now()
	var (
		totalFrequency float64
		totalSamples   int64
		classFrequency float64
		classSeen      bool
	)
	for i := range rows {
		decayed := rows[i].Frequency * e.cfg.Decay(rows[i].LastUpdated, now)
		totalFrequency += decayed
		totalSamples += rows[i].SampleCount
		if rows[i].DetectionClass == detectionClass {
			classFrequency = decayed
			classSeen = true
		}
	}

	if totalSamples < int64(e.cfg.MinSamples) {
		log.Debug("too few samples at this hour, verdict neutral",
			logger.Int64("samples", totalSamples),
			logger.Int("min_samples", e.cfg.MinSamples))
		return e.recordVerdict(neutralVerdict()), nil
	}

	relative := 0.0
	if totalFrequency > 0 {
		relative = classFrequency / totalFrequency
	}

	var score float64
	switch {
	case !classSeen:
		score = UnseenScore
	case classFrequency == 0:
		score = DecayedScore
	default:
		score = min(max(1.0-relative, minAnomalyRank), maxAnomalyRank)
	}

	verdict := Verdict{Anomalous: score > e.threshold, Score: score}
	log.Debug("detection scored",
		logger.Float64("score", score),
		logger.Float64("relative_frequency", relative),
		logger.Bool("anomalous", verdict.Anomalous))
	return e.recordVerdict(verdict), nil
}

func (e *Engine) recordVerdict(v Verdict) Verdict {
	if e.metrics == nil {
		return v
	}
	switch {
	case v.Neutral:
		e.metrics.RecordVerdict(metrics.OutcomeNeutral, v.Score)
	case v.Anomalous:
		e.metrics.RecordVerdict(metrics.OutcomeAnomalous, v.Score)
	default:
		e.metrics.RecordVerdict(metrics.OutcomeNormal, v.Score)
	}
	return v
}
