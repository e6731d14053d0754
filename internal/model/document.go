package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document records an uploaded file after the processing service has accepted
// it. The ID is assigned by the processing service, not generated here, so the
// primary key stays stable across both systems.
type Document struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Name       string         `gorm:"size:256;not null" json:"name"`
	StorageKey string         `gorm:"size:256;not null" json:"storage_key"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	Processed  bool           `gorm:"not null;default:false" json:"processed"`
	CreatedAt  time.Time      `json:"created_at"`
}
