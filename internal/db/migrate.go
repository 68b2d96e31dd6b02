package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/nibras/valet/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Note{},
		&models.Location{},
		&models.MergeLog{},
	}
}

// AutoMigrate creates or updates all valet tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
