package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pawtrip/backend/internal/models"
)

// Open connects to the SQLite database at dbPath and migrates the schema.
// Use ":memory:" or a path under t.TempDir() in tests.
func Open(dbPath string, logLevel logger.LogLevel) (*gorm.DB, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; serialize through one connection
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&models.StyleAsset{},
		&models.MirroredImage{},
		&models.StyleSession{},
		&models.Place{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	log.Printf("Database ready at %s", dbPath)
	return db, nil
}
