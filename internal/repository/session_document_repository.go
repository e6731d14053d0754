package repository

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfchat/internal/model"
)

type SessionDocumentRepository struct {
	db *gorm.DB
}

func NewSessionDocumentRepository(db *gorm.DB) *SessionDocumentRepository {
	return &SessionDocumentRepository{db: db}
}

// Attach links a document to a session. Attaching the same pair twice is a
// no-op, so the streaming route can attach unconditionally on every request.
func (r *SessionDocumentRepository) Attach(sessionID, documentID uuid.UUID) error {
	link := model.ChatSessionDocument{
		ChatSessionID: sessionID,
		DocumentID:    documentID,
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
		return fmt.Errorf("attach document failed: %w", err)
	}
	return nil
}

// ListDocumentsBySessionID returns the documents referenced by a session,
// oldest link first.
func (r *SessionDocumentRepository) ListDocumentsBySessionID(sessionID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.
		Joins("JOIN chat_session_documents ON chat_session_documents.document_id = documents.id").
		Where("chat_session_documents.chat_session_id = ?", sessionID).
		Order("chat_session_documents.created_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list session documents failed: %w", err)
	}
	return docs, nil
}

func (r *SessionDocumentRepository) Detach(sessionID, documentID uuid.UUID) error {
	err := r.db.
		Where("chat_session_id = ? AND document_id = ?", sessionID, documentID).
		Delete(&model.ChatSessionDocument{}).Error
	if err != nil {
		return fmt.Errorf("detach document failed: %w", err)
	}
	return nil
}

func (r *SessionDocumentRepository) DeleteBySessionID(sessionID uuid.UUID) error {
	if err := r.db.Where("chat_session_id = ?", sessionID).Delete(&model.ChatSessionDocument{}).Error; err != nil {
		return fmt.Errorf("delete session document links failed: %w", err)
	}
	return nil
}
