package database

import (
	"fmt"

	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/models"
	"whatsapp-concierge/pkg/logging"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects with the configured driver ("postgres" or "sqlite").
func Open(cfg *config.Config, log *logging.Logger) (*gorm.DB, error) {
	if log == nil {
		log = logging.Default()
	}
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect %s: %w", cfg.DBDriver, err)
	}
	log.Info("connected to database", "driver", cfg.DBDriver)
	return db, nil
}

// Migrate creates or updates the tables used by the gorm store.
func Migrate(db *gorm.DB, log *logging.Logger) error {
	if log == nil {
		log = logging.Default()
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("database: auto-migration: %w", err)
	}
	log.Info("database migration completed", "tables", len(models.All()))
	return nil
}
