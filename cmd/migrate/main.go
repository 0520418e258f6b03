package main

import (
	"flag"
	"fmt"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/database"
	"whatsapp-concierge/internal/models"
	"whatsapp-concierge/pkg/logging"
)

func main() {
	copyFrom := flag.String("copy-from", "", "sqlite file whose rows are copied into the configured database")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Default().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to migrate", "error", err)
		os.Exit(1)
	}

	if *copyFrom != "" {
		if err := copyRows(db, *copyFrom, logger); err != nil {
			logger.Error("copy failed", "source", *copyFrom, "error", err)
			os.Exit(1)
		}
	}

	if cfg.DBDriver == "postgres" {
		syncSequences(db, logger)
	}
	logger.Info("DONE!")
}

// copyRows moves every row of a sqlite database into db, one table per transaction.
func copyRows(db *gorm.DB, path string, logger *logging.Logger) error {
	src, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", path, err)
	}

	var sessions []models.ConversationSession
	var stats []models.ChatStat
	var messages []models.Message
	tables := []struct {
		name string
		rows any
	}{
		{"conversation_sessions", &sessions},
		{"chat_stats", &stats},
		{"messages", &messages},
	}

	for _, t := range tables {
		if err := src.Table(t.name).Find(t.rows).Error; err != nil {
			return fmt.Errorf("read %s: %w", t.name, err)
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(t.rows, 500).Error
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
		logger.Info("copied table", "table", t.name)
	}
	return nil
}

// syncSequences moves the serial sequence past rows copied with explicit ids.
func syncSequences(db *gorm.DB, logger *logging.Logger) {
	for _, table := range []string{"messages"} {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			logger.Error("failed to sync sequence", "table", table, "error", err)
			continue
		}
		logger.Info("synced sequence", "table", table)
	}
}
