// Package db provides the optional stats history store.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"soulvan-gateway/internal/config"
	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/models"
)

// Open opens a database connection using the provided configuration.
// It returns a nil *gorm.DB when no database is configured.
func Open(cfg config.Config, log *logger.Logger) (*gorm.DB, error) {
	if cfg.DBDialect == "" || cfg.DBDsn == "" {
		return nil, nil
	}

	// GORM writes through our Printf; silent unless debugging
	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Warn
	}
	gormLog := gormlogger.New(log.With("module", "db"), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	switch cfg.DBDialect {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DBDsn), &gorm.Config{Logger: gormLog})
	default:
		return nil, fmt.Errorf("unsupported database dialect: %s", cfg.DBDialect)
	}
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(&models.StatsSample{})
}
