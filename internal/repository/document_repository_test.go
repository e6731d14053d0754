package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pdfchat/internal/model"
)

func createTestDocument(t *testing.T, db *gorm.DB, userID uuid.UUID, name string) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		StorageKey: name,
		Metadata:   datatypes.JSON([]byte(`{"page_count":1}`)),
		Processed:  true,
	}
	if err := NewDocumentRepository(db).Create(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestDocumentKeepsExternalID(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	repo := NewDocumentRepository(db)

	externalID := uuid.New()
	doc := &model.Document{
		ID:         externalID,
		UserID:     user.ID,
		Name:       "report.pdf",
		StorageKey: externalID.String(),
		Metadata:   datatypes.JSON([]byte(`{}`)),
		Processed:  true,
	}
	if err := repo.Create(doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(externalID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != externalID {
		t.Fatalf("expected document under external id, got: %+v", got)
	}
}

func TestListByUserIDStableMostRecentFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	repo := NewDocumentRepository(db)

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		createTestDocument(t, db, user.ID, name)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := repo.ListByUserID(user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(first))
	}
	if first[0].Name != "c.pdf" || first[2].Name != "a.pdf" {
		t.Fatalf("expected most-recent-first order, got %q..%q", first[0].Name, first[2].Name)
	}

	// Reading twice without intervening writes yields identical results.
	second, err := repo.ListByUserID(user.ID)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("listing not idempotent at index %d", i)
		}
	}
}

func TestDeleteByUserIDScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	repo := NewDocumentRepository(db)

	createTestDocument(t, db, alice.ID, "alice.pdf")
	createTestDocument(t, db, bob.ID, "bob.pdf")

	if err := repo.DeleteByUserID(alice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	aliceDocs, err := repo.ListByUserID(alice.ID)
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(aliceDocs) != 0 {
		t.Fatalf("expected alice's documents gone, got %d", len(aliceDocs))
	}
	bobDocs, err := repo.ListByUserID(bob.ID)
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if len(bobDocs) != 1 {
		t.Fatalf("expected bob's document kept, got %d", len(bobDocs))
	}
}
