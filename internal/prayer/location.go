package prayer

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nibras/valet/internal/config"
	"github.com/nibras/valet/internal/models"
)

// LocationFor returns the conversation's saved location, falling back to
// the configured default when none has been set.
func LocationFor(db *gorm.DB, conversation string, cfg config.PrayerConfig) (models.Location, error) {
	var loc models.Location
	err := db.Where("conversation = ?", conversation).First(&loc).Error
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Location{}, fmt.Errorf("prayer: load location: %w", err)
	}
	return models.Location{
		Conversation: conversation,
		City:         cfg.City,
		Country:      cfg.Country,
		Latitude:     cfg.Latitude,
		Longitude:    cfg.Longitude,
		Method:       cfg.Method,
	}, nil
}

// SaveLocation upserts the conversation's location, keeping its current
// method if the row already exists.
func SaveLocation(db *gorm.DB, loc models.Location) error {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation"}},
		DoUpdates: clause.AssignmentColumns([]string{"city", "country", "latitude", "longitude"}),
	}).Create(&loc)
	if result.Error != nil {
		return fmt.Errorf("prayer: save location: %w", result.Error)
	}
	return nil
}

// SaveMethod sets the conversation's calculation method, creating the row
// from defaults if the conversation has never set a location.
func SaveMethod(db *gorm.DB, conversation string, method int, cfg config.PrayerConfig) error {
	if _, ok := Methods[method]; !ok {
		return fmt.Errorf("prayer: unknown calculation method %d", method)
	}
	loc, err := LocationFor(db, conversation, cfg)
	if err != nil {
		return err
	}
	loc.Method = method
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation"}},
		DoUpdates: clause.AssignmentColumns([]string{"method"}),
	}).Create(&loc)
	if result.Error != nil {
		return fmt.Errorf("prayer: save method: %w", result.Error)
	}
	return nil
}
