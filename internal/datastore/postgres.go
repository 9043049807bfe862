package datastore

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// PostgresStore implements Interface for PostgreSQL via pgx
type PostgresStore struct {
	DataStore
}

func validatePostgresConfig(s *conf.PostgresSettings) error {
	switch {
	case s.Host == "":
		return validationError("postgres host is required", "postgres.host", s.Host)
	case s.Database == "":
		return validationError("postgres database is required", "postgres.database", s.Database)
	}
	return nil
}

// postgresDSN builds a keyword/value connection string understood by pgx
func postgresDSN(s *conf.PostgresSettings) string {
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		s.Host, s.Port, s.Username, s.Password, s.Database, sslMode)
}

// Open sets up the PostgreSQL database connection
func (store *PostgresStore) Open() error {
	settings := &store.Settings.Postgres
	if err := validatePostgresConfig(settings); err != nil {
		return err
	}

	db, err := gorm.Open(postgres.Open(postgresDSN(settings)), store.gormConfig())
	if err != nil {
		store.logger.Error("failed to open PostgreSQL database",
			logger.String("host", settings.Host),
			logger.String("database", settings.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open PostgreSQL database: %w", err), "open", errors.PriorityCritical,
			"host", settings.Host,
			"database", settings.Database)
	}

	connectionInfo := fmt.Sprintf("%s:%s/%s", settings.Host, settings.Port, settings.Database)
	if err := store.attach(db, db.Name(), connectionInfo); err != nil {
		return err
	}
	store.logger.Info("opened PostgreSQL database", logger.String("connection", connectionInfo))
	return nil
}
