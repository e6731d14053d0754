package app

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"pdfchat/internal/model"
	"pdfchat/internal/repository"
)

var ErrFolderNotFound = errors.New("folder not found")

type FolderService struct {
	folderRepo *repository.FolderRepository
}

func NewFolderService(folderRepo *repository.FolderRepository) *FolderService {
	return &FolderService{folderRepo: folderRepo}
}

func (s *FolderService) Create(userID uuid.UUID, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	folder := &model.Folder{UserID: userID, Name: name}
	if err := s.folderRepo.Create(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderService) List(userID uuid.UUID) ([]model.Folder, error) {
	return s.folderRepo.ListByUserID(userID)
}

func (s *FolderService) Rename(folderID, userID uuid.UUID, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	folder, err := s.folderRepo.GetByIDAndUserID(folderID, userID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, ErrFolderNotFound
	}
	if err := s.folderRepo.Rename(folderID, name); err != nil {
		return nil, err
	}
	folder.Name = name
	return folder, nil
}

func (s *FolderService) Delete(folderID, userID uuid.UUID) error {
	folder, err := s.folderRepo.GetByIDAndUserID(folderID, userID)
	if err != nil {
		return err
	}
	if folder == nil {
		return ErrFolderNotFound
	}
	return s.folderRepo.DeleteByIDAndUserID(folderID, userID)
}
