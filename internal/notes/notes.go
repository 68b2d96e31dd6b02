// Package notes stores quick notes per conversation.
package notes

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nibras/valet/internal/models"
)

// Add saves a note for the conversation.
func Add(db *gorm.DB, conversation, userName, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("notes: note text is required")
	}
	note := models.Note{
		Conversation: conversation,
		UserName:     userName,
		Text:         text,
	}
	if err := db.Create(&note).Error; err != nil {
		return fmt.Errorf("notes: save: %w", err)
	}
	return nil
}

// Recent returns the conversation's newest notes, oldest first, at most limit.
func Recent(db *gorm.DB, conversation string, limit int) ([]models.Note, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.Note
	err := db.Where("conversation = ?", conversation).
		Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	// Reverse to chronological order for display.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Clear deletes all of the conversation's notes and returns how many went.
func Clear(db *gorm.DB, conversation string) (int64, error) {
	result := db.Where("conversation = ?", conversation).Delete(&models.Note{})
	if result.Error != nil {
		return 0, fmt.Errorf("notes: clear: %w", result.Error)
	}
	return result.RowsAffected, nil
}
