package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatSessionDocument associates a document with a chat session it is being
// discussed in. A document can back many sessions and vice versa.
type ChatSessionDocument struct {
	ChatSessionID uuid.UUID    `gorm:"type:uuid;primaryKey" json:"chat_session_id"`
	Session       *ChatSession `gorm:"foreignKey:ChatSessionID;constraint:OnDelete:CASCADE" json:"-"`
	DocumentID    uuid.UUID    `gorm:"type:uuid;primaryKey" json:"document_id"`
	Document      *Document    `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
}
