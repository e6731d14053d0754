package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfchat/internal/model"
)

type ChatSessionRepository struct {
	db *gorm.DB
}

func NewChatSessionRepository(db *gorm.DB) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

func (r *ChatSessionRepository) Create(session *model.ChatSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) ListByUserID(userID uuid.UUID) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return sessions, nil
}

// GetByIDAndUserID returns (nil, nil) when no session matches, so callers can
// treat "missing" and "owned by someone else" identically.
func (r *ChatSessionRepository) GetByIDAndUserID(sessionID, userID uuid.UUID) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// SessionUpdate carries the partial-update fields of a chat session. Nil
// pointers leave the column untouched.
type SessionUpdate struct {
	Title       *string
	Description *string
	IsArchived  *bool
	FolderID    *uuid.UUID
	ClearFolder bool
}

// Update applies a partial update and always refreshes updated_at.
func (r *ChatSessionRepository) Update(sessionID uuid.UUID, update SessionUpdate) (*model.ChatSession, error) {
	columns := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if update.Title != nil {
		columns["title"] = *update.Title
	}
	if update.Description != nil {
		columns["description"] = *update.Description
	}
	if update.IsArchived != nil {
		columns["is_archived"] = *update.IsArchived
	}
	if update.ClearFolder {
		columns["folder_id"] = nil
	} else if update.FolderID != nil {
		columns["folder_id"] = *update.FolderID
	}

	if err := r.db.Model(&model.ChatSession{}).Where("id = ?", sessionID).Updates(columns).Error; err != nil {
		return nil, fmt.Errorf("update chat session failed: %w", err)
	}

	var session model.ChatSession
	if err := r.db.Where("id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reload chat session failed: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) DeleteByIDAndUserID(sessionID, userID uuid.UUID) error {
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.ChatSession{}).Error; err != nil {
		return fmt.Errorf("delete chat session failed: %w", err)
	}
	return nil
}
