package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gradebot-go/internal/models"
)

const sqlitePrefix = "sqlite://"

// Connect opens the rubric store. DSNs starting with sqlite:// use an embedded
// SQLite file, which suits the CLI and local runs; anything else goes to PostgreSQL.
func Connect(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn must not be empty")
	}

	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		db, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the rubric tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Rubric{}, &models.RubricCriterion{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
