// Package metrics provides constants used across metric definitions.
package metrics

// Operation label values for datastore metrics.
const (
	OpDbQuery  = "db_query"
	OpDbInsert = "db_insert"
	OpDbUpdate = "db_update"
	OpDbDelete = "db_delete"
	OpDbOther  = "db_other"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCommit   = "committed"
	StatusRollback = "rollback"
)

// Store label values for baseline metrics.
const (
	StoreActivity = "activity"
	StoreClass    = "class"
)

// Outcome label values for baseline updates and verdicts.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeReset     = "reset"
	OutcomeAnomalous = "anomalous"
	OutcomeNormal    = "normal"
	OutcomeNeutral   = "neutral"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
	// ScoreBucketWidth and ScoreBucketCount cover anomaly scores 0.0 to 1.0.
	ScoreBucketWidth = 0.1
	ScoreBucketCount = 11
)
