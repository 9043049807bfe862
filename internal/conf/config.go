// Package conf loads and validates application settings.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// BaselineSettings contains the decay and scoring parameters of the engine
type BaselineSettings struct {
	DecayFactor         float64       `yaml:"decayfactor" mapstructure:"decayfactor"`                 // per-day weight multiplier, (0,1]
	WindowDays          int           `yaml:"windowdays" mapstructure:"windowdays"`                   // rows older than this are fully stale
	AnomalyThresholdStd float64       `yaml:"anomalythresholdstd" mapstructure:"anomalythresholdstd"` // higher means fewer anomalies
	MinSamples          int           `yaml:"minsamples" mapstructure:"minsamples"`                   // samples required before scoring
	MaxUpdateRetries    int           `yaml:"maxupdateretries" mapstructure:"maxupdateretries"`       // optimistic concurrency attempts per store
	SummaryCacheTTL     time.Duration `yaml:"summarycachettl" mapstructure:"summarycachettl"`         // 0 disables the summary cache
	NormalizeClasses    bool          `yaml:"normalizeclasses" mapstructure:"normalizeclasses"`       // fold class labels to lower case
}

// SQLiteSettings contains settings for the SQLite database
type SQLiteSettings struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MySQLSettings contains settings for the MySQL database
type MySQLSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// PostgresSettings contains settings for the PostgreSQL database
type PostgresSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// DatabaseSettings selects and configures the persistence backend
type DatabaseSettings struct {
	Driver        string           `yaml:"driver" mapstructure:"driver"`               // sqlite, mysql or postgres
	SlowThreshold time.Duration    `yaml:"slowthreshold" mapstructure:"slowthreshold"` // queries slower than this are logged at warn
	SQLite        SQLiteSettings   `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL         MySQLSettings    `yaml:"mysql" mapstructure:"mysql"`
	Postgres      PostgresSettings `yaml:"postgres" mapstructure:"postgres"`
}

// TelemetrySettings controls Sentry error reporting
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// MetricsSettings controls Prometheus collector registration
type MetricsSettings struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Settings contains all configuration options for the application
type Settings struct {
	Debug     bool                 `yaml:"debug" mapstructure:"debug"`
	Baseline  BaselineSettings     `yaml:"baseline" mapstructure:"baseline"`
	Database  DatabaseSettings     `yaml:"database" mapstructure:"database"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Metrics   MetricsSettings      `yaml:"metrics" mapstructure:"metrics"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables through v.
// A missing config file is created from the embedded defaults.
func Load(v *viper.Viper) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(v); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	settingsInstance = settings
	return settings, nil
}

// initViper registers defaults, environment bindings and config paths, then reads the file.
func initViper(v *viper.Viper) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return err
	}

	// An explicit --config file skips path search and default creation
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, getDefaultConfig(), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	getLog().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the embedded config.yaml.
func getDefaultConfig() []byte {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// embedded at build time; a failure here is a broken binary
		panic(fmt.Sprintf("error reading embedded config file: %v", err))
	}
	return data
}

// GetSettings returns the settings loaded by the last successful Load, or nil
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// RedactedYAML renders settings with secrets masked, for display.
func (s *Settings) RedactedYAML() ([]byte, error) {
	redacted := *s
	if redacted.Database.MySQL.Password != "" {
		redacted.Database.MySQL.Password = redactedValue
	}
	if redacted.Database.Postgres.Password != "" {
		redacted.Database.Postgres.Password = redactedValue
	}
	if redacted.Telemetry.DSN != "" {
		redacted.Telemetry.DSN = redactedValue
	}
	return yaml.Marshal(&redacted)
}

const redactedValue = "[REDACTED]"

// SaveYAMLConfig writes settings to configPath atomically via a temp file and rename.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

func getLog() logger.Logger {
	return logger.Global().Module("conf")
}
