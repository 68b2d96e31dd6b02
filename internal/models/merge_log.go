package models

import "time"

// MergeLog is an audit row written when a merge session ends, whatever
// the outcome. It records counts only; the staged artifacts themselves
// never outlive the session.
type MergeLog struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Conversation string `gorm:"size:128;not null;index"`
	Outcome      string `gorm:"size:16;not null"` // merged, cancelled, failed
	InputCount   int    `gorm:"not null"`
	Detail       string `gorm:"size:256"` // failure detail, if any
	CreatedAt    time.Time
}
