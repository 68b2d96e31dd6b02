package models

import "time"

// Note is a quick note saved with /addnote, scoped to the conversation
// that created it.
type Note struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Conversation string `gorm:"size:128;not null;index"`
	UserName     string `gorm:"size:64"`
	Text         string `gorm:"type:text;not null"`
	CreatedAt    time.Time
}
