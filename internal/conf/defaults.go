package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("baseline.decayfactor", 0.95)
	v.SetDefault("baseline.windowdays", 30)
	v.SetDefault("baseline.anomalythresholdstd", 2.0)
	v.SetDefault("baseline.minsamples", 10)
	v.SetDefault("baseline.maxupdateretries", 8)
	v.SetDefault("baseline.summarycachettl", 30*time.Second)
	v.SetDefault("baseline.normalizeclasses", false)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.slowthreshold", 200*time.Millisecond)
	v.SetDefault("database.sqlite.path", "baseline.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.database", "baseline")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", "5432")
	v.SetDefault("database.postgres.database", "baseline")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/baseline.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("metrics.enabled", true)
}
