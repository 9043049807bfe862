package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// sqliteParams enables WAL, waits on locks instead of failing, enforces
// foreign keys and takes the write lock when a transaction begins.
const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON&_txlock=immediate"

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
}

func validateSQLiteConfig(path string) error {
	if path == "" {
		return validationError("sqlite path is required", "sqlite.path", path)
	}
	return nil
}

// sqliteDSN builds the connection string for a database file
func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?%s", path, sqliteParams)
}

// Open sets up the SQLite database connection
func (store *SQLiteStore) Open() error {
	path := store.Settings.SQLite.Path
	if err := validateSQLiteConfig(path); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), store.gormConfig())
	if err != nil {
		store.logger.Error("failed to open SQLite database",
			logger.String("path", path),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open", errors.PriorityCritical,
			"path", path)
	}

	if err := store.attach(db, db.Name(), path); err != nil {
		return err
	}
	store.logger.Info("opened SQLite database", logger.String("path", path))
	return nil
}
