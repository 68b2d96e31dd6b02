package models

import "time"

// Location stores a conversation's prayer-time location and calculation
// method, set via /setlocation and /setmethod. One row per conversation.
type Location struct {
	ID           uint    `gorm:"primaryKey;autoIncrement"`
	Conversation string  `gorm:"size:128;not null;uniqueIndex"`
	City         string  `gorm:"size:128;not null"`
	Country      string  `gorm:"size:128;not null"`
	Latitude     float64 `gorm:"not null"`
	Longitude    float64 `gorm:"not null"`
	Method       int     `gorm:"not null;default:3"`
	UpdatedAt    time.Time
}
