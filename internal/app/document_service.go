package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"pdfchat/internal/model"
	"pdfchat/internal/pkg/pdfextract"
	"pdfchat/internal/repository"
	"pdfchat/internal/upstream"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoFilesPersisted = errors.New("no uploaded files could be persisted")
)

// ObjectStore keeps the raw uploaded bytes addressable by storage key.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

const downloadURLTTL = 15 * time.Minute

type DocumentService struct {
	documentRepo *repository.DocumentRepository
	store        ObjectStore
	logger       *zap.SugaredLogger
}

func NewDocumentService(documentRepo *repository.DocumentRepository, store ObjectStore, logger *zap.SugaredLogger) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		store:        store,
		logger:       logger,
	}
}

func (s *DocumentService) List(userID uuid.UUID) ([]model.Document, error) {
	return s.documentRepo.ListByUserID(userID)
}

func (s *DocumentService) Get(documentID, userID uuid.UUID) (*model.Document, error) {
	doc, err := s.documentRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes the database row and then the stored object. A failed object
// delete is logged but does not resurrect the row.
func (s *DocumentService) Delete(ctx context.Context, documentID, userID uuid.UUID) error {
	doc, err := s.Get(documentID, userID)
	if err != nil {
		return err
	}
	if err := s.documentRepo.DeleteByIDAndUserID(documentID, userID); err != nil {
		return err
	}
	if s.store != nil && doc.StorageKey != "" {
		if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
			s.logger.Warnw("object delete failed", "document_id", documentID, "key", doc.StorageKey, "error", err)
		}
	}
	return nil
}

// DownloadURL returns a presigned GET URL for the document's stored object.
func (s *DocumentService) DownloadURL(ctx context.Context, documentID, userID uuid.UUID) (string, error) {
	doc, err := s.Get(documentID, userID)
	if err != nil {
		return "", err
	}
	if s.store == nil || doc.StorageKey == "" {
		return "", fmt.Errorf("document %s has no stored object", documentID)
	}
	return s.store.PresignGet(ctx, doc.StorageKey, downloadURLTTL)
}

// RegisterProcessed records the files the processing service accepted. The
// raw bytes of each file are copied to the object store and a local text
// excerpt is merged into the metadata the processing service returned. Each
// file is handled independently; the call succeeds as long as at least one
// row persists, and the returned slice holds only the persisted documents.
func (s *DocumentService) RegisterProcessed(ctx context.Context, userID uuid.UUID, uploads []upstream.UploadPart, files []upstream.ProcessedFile) ([]model.Document, error) {
	if len(files) == 0 {
		return nil, ErrInvalidInput
	}

	contentByName := make(map[string][]byte, len(uploads))
	for _, u := range uploads {
		contentByName[u.FileName] = u.Content
	}

	persisted := make([]model.Document, 0, len(files))
	for _, f := range files {
		content := contentByName[f.FileName]
		key := storageKeyFor(userID, f.ID, f.FileName)

		if s.store != nil && len(content) > 0 {
			if err := s.store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
				s.logger.Warnw("object store copy failed", "document_id", f.ID, "key", key, "error", err)
			}
		}

		doc := model.Document{
			ID:         f.ID,
			UserID:     userID,
			Name:       f.FileName,
			StorageKey: key,
			Metadata:   mergeLocalStats(f.Metadata, content),
			Processed:  true,
			CreatedAt:  f.CreatedTime(),
		}
		if err := s.documentRepo.Create(&doc); err != nil {
			s.logger.Errorw("document insert failed", "document_id", f.ID, "file", f.FileName, "error", err)
			continue
		}
		persisted = append(persisted, doc)
	}

	if len(persisted) == 0 {
		return nil, ErrNoFilesPersisted
	}
	return persisted, nil
}

// mergeLocalStats folds a locally extracted text excerpt into the metadata
// returned by the processing service. Unreadable PDFs and unparseable
// metadata leave the original payload untouched.
func mergeLocalStats(metadata json.RawMessage, content []byte) datatypes.JSON {
	if len(content) == 0 {
		return datatypes.JSON(metadata)
	}
	stats := pdfextract.Describe(content)
	if stats == nil {
		return datatypes.JSON(metadata)
	}

	merged := map[string]interface{}{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &merged); err != nil {
			return datatypes.JSON(metadata)
		}
	}
	merged["local_text"] = stats

	out, err := json.Marshal(merged)
	if err != nil {
		return datatypes.JSON(metadata)
	}
	return datatypes.JSON(out)
}

// storageKeyFor namespaces objects per user and keys them by the processing
// service's document id so re-uploads of a renamed file stay distinct.
func storageKeyFor(userID, docID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", userID, docID, fileName)
}
