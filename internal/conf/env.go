package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the application reads.
const EnvPrefix = "BASELINE"

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"baseline.decayfactor", EnvPrefix + "_DECAY_FACTOR", validateEnvFloat},
		{"baseline.windowdays", EnvPrefix + "_WINDOW_DAYS", validateEnvInt},
		{"baseline.anomalythresholdstd", EnvPrefix + "_ANOMALY_THRESHOLD_STD", validateEnvFloat},
		{"baseline.minsamples", EnvPrefix + "_MIN_SAMPLES", validateEnvInt},
		{"baseline.summarycachettl", EnvPrefix + "_SUMMARY_CACHE_TTL", validateEnvDuration},

		{"database.driver", EnvPrefix + "_DB_DRIVER", validateEnvDriver},
		{"database.sqlite.path", EnvPrefix + "_SQLITE_PATH", nil},
		{"database.mysql.host", EnvPrefix + "_MYSQL_HOST", nil},
		{"database.mysql.port", EnvPrefix + "_MYSQL_PORT", validateEnvInt},
		{"database.mysql.username", EnvPrefix + "_MYSQL_USERNAME", nil},
		{"database.mysql.password", EnvPrefix + "_MYSQL_PASSWORD", nil},
		{"database.mysql.database", EnvPrefix + "_MYSQL_DATABASE", nil},
		{"database.postgres.host", EnvPrefix + "_POSTGRES_HOST", nil},
		{"database.postgres.port", EnvPrefix + "_POSTGRES_PORT", validateEnvInt},
		{"database.postgres.username", EnvPrefix + "_POSTGRES_USERNAME", nil},
		{"database.postgres.password", EnvPrefix + "_POSTGRES_PASSWORD", nil},
		{"database.postgres.database", EnvPrefix + "_POSTGRES_DATABASE", nil},

		{"logging.default_level", EnvPrefix + "_LOG_LEVEL", nil},
		{"telemetry.enabled", EnvPrefix + "_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", EnvPrefix + "_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every environment variable and validates values that are set.
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvInt(value string) error {
	_, err := strconv.Atoi(value)
	return err
}

func validateEnvFloat(value string) error {
	_, err := strconv.ParseFloat(value, 64)
	return err
}

func validateEnvDuration(value string) error {
	_, err := time.ParseDuration(value)
	return err
}

func validateEnvDriver(value string) error {
	switch strings.ToLower(value) {
	case DriverSQLite, DriverMySQL, DriverPostgres:
		return nil
	default:
		return fmt.Errorf("must be one of %s, %s, %s", DriverSQLite, DriverMySQL, DriverPostgres)
	}
}
