package datastore

import (
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
)

// Sentinel errors
var (
	ErrBaselineNotFound = errors.NewStd("baseline not found")
	ErrCameraNotFound   = errors.NewStd("camera not found")
	ErrNotInitialized   = errors.NewStd("database connection is not initialized")
	ErrTxDone           = errors.NewStd("transaction has already been committed or rolled back")
)

// MySQL server error numbers
const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrNoReferenced   = 1452
)

// PostgreSQL SQLSTATE codes
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error for a rejected input field
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFoundError wraps a sentinel so callers can match it with errors.Is
func notFoundError(sentinel error, context ...any) error {
	builder := errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound)
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

// isForeignKeyViolation reports whether err is a driver foreign key violation
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}

	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrNoReferenced
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}

	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

// isUniqueViolation reports whether err is a driver unique constraint violation
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return false
}

// categorizeError labels database errors for metrics
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case isUniqueViolation(err):
		return "constraint_violation"
	case isForeignKeyViolation(err):
		return "foreign_key_violation"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "deadlock"):
		return "deadlock"
	case strings.Contains(errStr, "database is locked"):
		return "database_locked"
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "syntax"):
		return "syntax_error"
	default:
		return "other"
	}
}
