// Package datastore persists cameras and their behavioral baselines through GORM.
//
// SQLite, MySQL and PostgreSQL are supported. Baseline rows carry a version
// column so that concurrent writers can fold updates with compare-and-swap
// instead of holding a process-wide lock.
package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// Connection pool limits shared by every driver
const (
	maxIdleConns    = 10
	maxOpenConns    = 100
	connMaxLifetime = time.Hour
)

// Repository is the set of baseline and camera operations available both on
// the store itself and inside a transaction.
type Repository interface {
	// LoadBaseline fills b from the row matching its key, or returns ErrBaselineNotFound.
	LoadBaseline(ctx context.Context, b Baseline) error
	// InsertBaseline creates b unless a row with the same key exists.
	// It reports false when another writer inserted the key first.
	InsertBaseline(ctx context.Context, b Baseline) (bool, error)
	// SwapBaseline writes b only if the stored version still equals expectedVersion.
	SwapBaseline(ctx context.Context, b Baseline, expectedVersion int64) (bool, error)

	ListActivityBaselines(ctx context.Context, cameraID string) ([]ActivityBaseline, error)
	ListClassBaselines(ctx context.Context, cameraID string) ([]ClassBaseline, error)
	ListClassBaselinesByHour(ctx context.Context, cameraID string, hour int) ([]ClassBaseline, error)

	SaveCamera(ctx context.Context, camera *Camera) error
	EnsureCamera(ctx context.Context, id, name string) error
	GetCamera(ctx context.Context, id string) (*Camera, error)
	ListCameras(ctx context.Context) ([]Camera, error)
	DeleteCamera(ctx context.Context, id string) error

	// AfterCommit runs fn once the surrounding transaction commits, or
	// immediately when there is none.
	AfterCommit(fn func())
}

// Interface is a database backend holding baseline state
type Interface interface {
	Repository
	Open() error
	Close() error
	Begin(ctx context.Context) (*Tx, error)
	Transaction(ctx context.Context, fn func(tx *Tx) error) error
	Dialect() string
}

// DataStore implements Interface on top of an opened GORM connection
type DataStore struct {
	repository
	DB       *gorm.DB
	Settings *conf.DatabaseSettings
	logger   logger.Logger
	metrics  *Metrics
}

// Option configures a store created by New
type Option func(*DataStore)

// WithLogger sets the logger used for connection events and SQL tracing
func WithLogger(l logger.Logger) Option {
	return func(ds *DataStore) {
		if l != nil {
			ds.logger = l
		}
	}
}

// WithMetrics records per-statement and transaction metrics into m
func WithMetrics(m *Metrics) Option {
	return func(ds *DataStore) { ds.metrics = m }
}

// New returns an unopened store for the configured driver
func New(settings *conf.DatabaseSettings, opts ...Option) (Interface, error) {
	if settings == nil {
		return nil, validationError("database settings are required", "database", nil)
	}

	base := DataStore{
		Settings: settings,
		logger:   logger.Global().Module("datastore"),
	}
	for _, opt := range opts {
		opt(&base)
	}

	switch settings.Driver {
	case conf.DriverSQLite, "":
		return &SQLiteStore{DataStore: base}, nil
	case conf.DriverMySQL:
		return &MySQLStore{DataStore: base}, nil
	case conf.DriverPostgres:
		return &PostgresStore{DataStore: base}, nil
	default:
		return nil, validationError(fmt.Sprintf("unsupported database driver %q", settings.Driver), "driver", settings.Driver)
	}
}

// Open connects the store described by settings and migrates its schema.
func Open(settings *conf.DatabaseSettings, opts ...Option) (Interface, error) {
	store, err := New(settings, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// gormConfig builds the GORM configuration shared by every dialect
func (ds *DataStore) gormConfig() *gorm.Config {
	var slow time.Duration
	if ds.Settings != nil {
		slow = ds.Settings.SlowThreshold
	}
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(ds.logger.Module("gorm"), slow, queryObserver(ds.metrics)),
		TranslateError: false,
	}
}

// attach configures the pool, migrates and binds the repository to db
func (ds *DataStore) attach(db *gorm.DB, dialect, connectionInfo string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", errors.PriorityCritical, "dialect", dialect)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := performAutoMigration(db, dialect, connectionInfo, ds.logger); err != nil {
		_ = sqlDB.Close()
		return err
	}

	ds.DB = db
	ds.repository = repository{
		db:      db,
		dialect: dialect,
		metrics: ds.metrics,
		log:     ds.logger,
	}
	return nil
}

// mysqlCollation makes MySQL compare camera ids and class names byte for
// byte, like SQLite and PostgreSQL do.
const mysqlCollation = "utf8mb4_bin"

// performAutoMigration creates or updates the camera and baseline tables
func performAutoMigration(db *gorm.DB, dialect, connectionInfo string, log logger.Logger) error {
	if dialect == "mysql" {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE="+mysqlCollation)
	}
	if err := db.AutoMigrate(&Camera{}, &ActivityBaseline{}, &ClassBaseline{}); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityCritical,
			"dialect", dialect,
			"connection", connectionInfo)
	}
	if dialect == "mysql" {
		if err := convertMySQLCollation(db, log); err != nil {
			return dbError(err, "convert_collation", errors.PriorityCritical,
				"dialect", dialect,
				"connection", connectionInfo)
		}
	}
	log.Debug("schema migrated",
		logger.String("dialect", dialect),
		logger.String("connection", connectionInfo))
	return nil
}

// convertMySQLCollation rewrites tables created under another collation,
// such as the server default utf8mb4_0900_ai_ci.
func convertMySQLCollation(db *gorm.DB, log logger.Logger) error {
	var tables []string
	err := db.Raw(`SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME IN ? AND TABLE_COLLATION <> ?`,
		[]string{tableCameras, tableActivityBaselines, tableClassBaselines}, mysqlCollation).
		Scan(&tables).Error
	if err != nil || len(tables) == 0 {
		return err
	}

	// foreign key columns must share a collation, so checks stay off until
	// every table is converted
	return db.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SET FOREIGN_KEY_CHECKS = 0").Error; err != nil {
			return err
		}
		for _, table := range tables {
			stmt := fmt.Sprintf("ALTER TABLE `%s` CONVERT TO CHARACTER SET utf8mb4 COLLATE %s", table, mysqlCollation)
			if err := conn.Exec(stmt).Error; err != nil {
				_ = conn.Exec("SET FOREIGN_KEY_CHECKS = 1").Error
				return err
			}
			log.Info("converted table collation",
				logger.String("table", table),
				logger.String("collation", mysqlCollation))
		}
		return conn.Exec("SET FOREIGN_KEY_CHECKS = 1").Error
	})
}

// Dialect returns the GORM dialector name, or "" before Open
func (ds *DataStore) Dialect() string {
	return ds.dialect
}

// Close releases the connection pool
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityMedium, "dialect", ds.dialect)
	}
	ds.logger.Debug("database closed", logger.String("dialect", ds.dialect))
	ds.DB = nil
	ds.repository = repository{}
	return nil
}
