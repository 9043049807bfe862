package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/conf"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
}

func validateMySQLConfig(s *conf.MySQLSettings) error {
	switch {
	case s.Host == "":
		return validationError("mysql host is required", "mysql.host", s.Host)
	case s.Database == "":
		return validationError("mysql database is required", "mysql.database", s.Database)
	}
	return nil
}

// mysqlDSN builds the go-sql-driver connection string
func mysqlDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open sets up the MySQL database connection
func (store *MySQLStore) Open() error {
	settings := &store.Settings.MySQL
	if err := validateMySQLConfig(settings); err != nil {
		return err
	}

	db, err := gorm.Open(mysql.Open(mysqlDSN(settings)), store.gormConfig())
	if err != nil {
		store.logger.Error("failed to open MySQL database",
			logger.String("host", settings.Host),
			logger.String("port", settings.Port),
			logger.String("database", settings.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open", errors.PriorityCritical,
			"host", settings.Host,
			"database", settings.Database)
	}

	connectionInfo := fmt.Sprintf("%s:%s/%s", settings.Host, settings.Port, settings.Database)
	if err := store.attach(db, db.Name(), connectionInfo); err != nil {
		return err
	}
	store.logger.Info("opened MySQL database", logger.String("connection", connectionInfo))
	return nil
}
