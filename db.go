package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"imgmeasure/models"
	"imgmeasure/pkg/config"
)

var errNoDSN = errors.New("database.dsn (DB_DSN) is not set")

// openDB connects to postgres and, unless disabled with DB_AUTO_MIGRATE,
// migrates the run tables.
func openDB(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errNoDSN
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.AutoMigrate {
		migrate(db, log)
	}
	return db, nil
}

// migrate creates or updates each table on its own so a failure on one
// doesn't block the others. Errors are logged, not returned.
func migrate(db *gorm.DB, log *zap.Logger) int {
	failed := 0
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			failed++
			log.Warn("migration warning", zap.String("model", fmt.Sprintf("%T", m)), zap.Error(err))
		}
	}
	return failed
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
