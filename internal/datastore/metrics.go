package datastore

import (
	"regexp"
	"strings"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/observability/metrics"
)

// Metrics is the datastore's view of the observability collectors
type Metrics = metrics.DatastoreMetrics

// sqlUnknown is used when SQL operation or table cannot be determined.
const sqlUnknown = "unknown"

var (
	selectPattern = regexp.MustCompile(`(?i)^\s*SELECT\s+.*?\s+FROM\s+['"\x60]?(\w+)['"\x60]?`)
	insertPattern = regexp.MustCompile(`(?i)^\s*INSERT\s+INTO\s+['"\x60]?(\w+)['"\x60]?`)
	updatePattern = regexp.MustCompile(`(?i)^\s*UPDATE\s+['"\x60]?(\w+)['"\x60]?`)
	deletePattern = regexp.MustCompile(`(?i)^\s*DELETE\s+FROM\s+['"\x60]?(\w+)['"\x60]?`)
)

// parseSQLOperation maps a statement onto an operation label and table name
func parseSQLOperation(sql string) (operation, table string) {
	sql = strings.TrimSpace(sql)

	if m := selectPattern.FindStringSubmatch(sql); len(m) > 1 {
		return metrics.OpDbQuery, m[1]
	}
	if m := insertPattern.FindStringSubmatch(sql); len(m) > 1 {
		return metrics.OpDbInsert, m[1]
	}
	if m := updatePattern.FindStringSubmatch(sql); len(m) > 1 {
		return metrics.OpDbUpdate, m[1]
	}
	if m := deletePattern.FindStringSubmatch(sql); len(m) > 1 {
		return metrics.OpDbDelete, m[1]
	}
	return metrics.OpDbOther, sqlUnknown
}

// queryObserver turns traced GORM statements into datastore metrics
func queryObserver(m *Metrics) logger.QueryObserver {
	if m == nil {
		return nil
	}
	return func(sql string, _ int64, elapsed time.Duration, err error) {
		operation, table := parseSQLOperation(sql)
		m.RecordDbOperationDuration(operation, table, elapsed.Seconds())
		if err != nil && !isRecordNotFound(err) {
			m.RecordDbOperation(operation, table, metrics.StatusError)
			m.RecordDbOperationError(operation, table, categorizeError(err))
			return
		}
		m.RecordDbOperation(operation, table, metrics.StatusSuccess)
	}
}
