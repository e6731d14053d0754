package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdfchat/internal/model"
)

type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(folder *model.Folder) error {
	if err := r.db.Create(folder).Error; err != nil {
		return fmt.Errorf("create folder failed: %w", err)
	}
	return nil
}

func (r *FolderRepository) ListByUserID(userID uuid.UUID) ([]model.Folder, error) {
	var folders []model.Folder
	if err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("list folders failed: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) GetByIDAndUserID(folderID, userID uuid.UUID) (*model.Folder, error) {
	var folder model.Folder
	if err := r.db.Where("id = ? AND user_id = ?", folderID, userID).First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get folder failed: %w", err)
	}
	return &folder, nil
}

func (r *FolderRepository) Rename(folderID uuid.UUID, name string) error {
	columns := map[string]interface{}{
		"name":       name,
		"updated_at": time.Now(),
	}
	if err := r.db.Model(&model.Folder{}).Where("id = ?", folderID).Updates(columns).Error; err != nil {
		return fmt.Errorf("rename folder failed: %w", err)
	}
	return nil
}

// DeleteByIDAndUserID removes the folder; sessions keep existing with their
// folder_id cleared by the SET NULL constraint.
func (r *FolderRepository) DeleteByIDAndUserID(folderID, userID uuid.UUID) error {
	if err := r.db.Where("id = ? AND user_id = ?", folderID, userID).Delete(&model.Folder{}).Error; err != nil {
		return fmt.Errorf("delete folder failed: %w", err)
	}
	return nil
}
