package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BaselineMetrics contains Prometheus metrics for the baseline engine
type BaselineMetrics struct {
	updatesTotal      *prometheus.CounterVec
	updateConflicts   *prometheus.CounterVec
	updateDuration    prometheus.Histogram
	verdictsTotal     *prometheus.CounterVec
	anomalyScore      prometheus.Histogram
	summaryCacheTotal *prometheus.CounterVec
	configuredDecay   prometheus.Gauge
	configuredCutoff  prometheus.Gauge
	collectors        []prometheus.Collector
}

// NewBaselineMetrics creates and registers new baseline engine metrics
func NewBaselineMetrics(registry prometheus.Registerer) (*BaselineMetrics, error) {
	m := &BaselineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BaselineMetrics) initMetrics() {
	m.updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_updates_total",
			Help: "Baseline rows written, by store and outcome (created, updated, reset)",
		},
		[]string{"store", "outcome"},
	)

	m.updateConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_update_conflicts_total",
			Help: "Concurrent write collisions that forced a reload and retry",
		},
		[]string{"store"},
	)

	m.updateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baseline_update_duration_seconds",
			Help:    "Time taken to fold one detection into both baseline stores",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount15),
		},
	)

	m.verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_anomaly_verdicts_total",
			Help: "Anomaly verdicts by outcome (anomalous, normal, neutral)",
		},
		[]string{"outcome"},
	)

	m.anomalyScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "baseline_anomaly_score",
			Help:    "Distribution of informed anomaly scores",
			Buckets: prometheus.LinearBuckets(0, ScoreBucketWidth, ScoreBucketCount),
		},
	)

	m.summaryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "baseline_summary_cache_total",
			Help: "Camera summary cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	m.configuredDecay = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baseline_config_decay_factor",
		Help: "Configured per-day decay factor",
	})

	m.configuredCutoff = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baseline_config_anomaly_cutoff",
		Help: "Anomaly score above which a detection is flagged",
	})

	m.collectors = []prometheus.Collector{
		m.updatesTotal,
		m.updateConflicts,
		m.updateDuration,
		m.verdictsTotal,
		m.anomalyScore,
		m.summaryCacheTotal,
		m.configuredDecay,
		m.configuredCutoff,
	}
}

// Describe implements the Collector interface
func (m *BaselineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *BaselineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordUpdate records one row written to store with outcome
func (m *BaselineMetrics) RecordUpdate(store, outcome string) {
	m.updatesTotal.WithLabelValues(store, outcome).Inc()
}

// RecordConflict records a lost optimistic concurrency race on store
func (m *BaselineMetrics) RecordConflict(store string) {
	m.updateConflicts.WithLabelValues(store).Inc()
}

// RecordUpdateDuration records the duration of one UpdateBaseline call in seconds
func (m *BaselineMetrics) RecordUpdateDuration(seconds float64) {
	m.updateDuration.Observe(seconds)
}

// RecordVerdict records an anomaly verdict. Neutral verdicts carry no score.
func (m *BaselineMetrics) RecordVerdict(outcome string, score float64) {
	m.verdictsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeNeutral {
		m.anomalyScore.Observe(score)
	}
}

// RecordSummaryCache records a summary cache hit or miss
func (m *BaselineMetrics) RecordSummaryCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.summaryCacheTotal.WithLabelValues(result).Inc()
}

// SetConfig publishes the engine's configured decay factor and anomaly cutoff
func (m *BaselineMetrics) SetConfig(decayFactor, cutoff float64) {
	m.configuredDecay.Set(decayFactor)
	m.configuredCutoff.Set(cutoff)
}
