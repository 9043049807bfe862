package conf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateBaselineSettings(&settings.Baseline)...)
	ve.Errors = append(ve.Errors, validateDatabaseSettings(&settings.Database)...)
	ve.Errors = append(ve.Errors, validateLoggingSettings(settings)...)

	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry.dsn is required when telemetry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateBaselineSettings mirrors the engine's own construction checks so a bad
// config file is reported with every problem at once.
func validateBaselineSettings(s *BaselineSettings) []string {
	var errs []string

	if math.IsNaN(s.DecayFactor) || s.DecayFactor <= 0 || s.DecayFactor > 1 {
		errs = append(errs, fmt.Sprintf("baseline.decayfactor must be in (0, 1], got %v", s.DecayFactor))
	}
	if s.WindowDays < 1 {
		errs = append(errs, fmt.Sprintf("baseline.windowdays must be at least 1, got %d", s.WindowDays))
	}
	if math.IsNaN(s.AnomalyThresholdStd) || s.AnomalyThresholdStd < 0 {
		errs = append(errs, fmt.Sprintf("baseline.anomalythresholdstd must be non-negative, got %v", s.AnomalyThresholdStd))
	}
	if s.MinSamples < 1 {
		errs = append(errs, fmt.Sprintf("baseline.minsamples must be at least 1, got %d", s.MinSamples))
	}
	if s.MaxUpdateRetries < 1 {
		errs = append(errs, fmt.Sprintf("baseline.maxupdateretries must be at least 1, got %d", s.MaxUpdateRetries))
	}
	if s.SummaryCacheTTL < 0 {
		errs = append(errs, fmt.Sprintf("baseline.summarycachettl must not be negative, got %s", s.SummaryCacheTTL))
	}
	return errs
}

func validateDatabaseSettings(s *DatabaseSettings) []string {
	var errs []string

	s.Driver = strings.ToLower(s.Driver)
	switch s.Driver {
	case DriverSQLite:
		if s.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path is required for the sqlite driver")
		}
	case DriverMySQL:
		if s.MySQL.Host == "" || s.MySQL.Database == "" || s.MySQL.Username == "" {
			errs = append(errs, "database.mysql host, username and database are required for the mysql driver")
		}
	case DriverPostgres:
		if s.Postgres.Host == "" || s.Postgres.Database == "" || s.Postgres.Username == "" {
			errs = append(errs, "database.postgres host, username and database are required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", s.Driver))
	}

	if s.SlowThreshold < 0 {
		errs = append(errs, fmt.Sprintf("database.slowthreshold must not be negative, got %s", s.SlowThreshold))
	}
	return errs
}

func validateLoggingSettings(settings *Settings) []string {
	var errs []string

	levels := map[string]string{"logging.default_level": settings.Logging.DefaultLevel}
	if settings.Logging.Console != nil {
		levels["logging.console.level"] = settings.Logging.Console.Level
	}
	if settings.Logging.FileOutput != nil {
		levels["logging.file_output.level"] = settings.Logging.FileOutput.Level
	}
	for module, level := range settings.Logging.ModuleLevels {
		levels["logging.module_levels."+module] = level
	}

	for key, level := range levels {
		switch level {
		case "", "trace", "debug", "info", "warn", "error":
		default:
			errs = append(errs, fmt.Sprintf("%s %q is not a valid log level", key, level))
		}
	}

	if settings.Logging.Timezone != "" && settings.Logging.Timezone != "Local" {
		if _, err := time.LoadLocation(settings.Logging.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("logging.timezone %q is invalid: %v", settings.Logging.Timezone, err))
		}
	}
	return errs
}
