package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pdfchat/internal/upstream"
)

func TestRegisterProcessedStoresAndPersists(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	id := uuid.New()
	uploads := []upstream.UploadPart{{FileName: "paper.pdf", Content: []byte("%PDF not really")}}
	files := []upstream.ProcessedFile{{
		ID:       id,
		FileName: "paper.pdf",
		Metadata: json.RawMessage(`{"pages": 3}`),
	}}

	docs, err := env.documents.RegisterProcessed(context.Background(), user.ID, uploads, files)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("persisted = %d, want 1", len(docs))
	}
	doc := docs[0]
	if doc.ID != id {
		t.Fatalf("id = %s, want external id %s", doc.ID, id)
	}
	if !doc.Processed {
		t.Fatal("document not marked processed")
	}
	if !strings.Contains(doc.StorageKey, id.String()) {
		t.Fatalf("storage key %q missing document id", doc.StorageKey)
	}
	if _, ok := env.store.objects[doc.StorageKey]; !ok {
		t.Fatalf("raw bytes not copied to object store under %q", doc.StorageKey)
	}

	var meta map[string]any
	if err := json.Unmarshal(doc.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["pages"] != float64(3) {
		t.Fatalf("upstream metadata lost: %v", meta)
	}
}

func TestRegisterProcessedToleratesPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	dup := uuid.New()
	files := []upstream.ProcessedFile{
		{ID: dup, FileName: "a.pdf"},
		{ID: dup, FileName: "b.pdf"}, // duplicate primary key, insert fails
		{ID: uuid.New(), FileName: "c.pdf"},
	}

	docs, err := env.documents.RegisterProcessed(context.Background(), user.ID, nil, files)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("persisted = %d, want 2", len(docs))
	}
}

func TestRegisterProcessedFailsWhenNothingPersists(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	id := uuid.New()
	first := []upstream.ProcessedFile{{ID: id, FileName: "a.pdf"}}
	if _, err := env.documents.RegisterProcessed(context.Background(), user.ID, nil, first); err != nil {
		t.Fatalf("seed register: %v", err)
	}

	// Same id again, every insert collides.
	_, err := env.documents.RegisterProcessed(context.Background(), user.ID, nil, first)
	if !errors.Is(err, ErrNoFilesPersisted) {
		t.Fatalf("err = %v, want ErrNoFilesPersisted", err)
	}
}

func TestDocumentGetEnforcesOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := createUser(t, env.db, "alice")
	intruder := createUser(t, env.db, "mallory")

	files := []upstream.ProcessedFile{{ID: uuid.New(), FileName: "a.pdf"}}
	docs, err := env.documents.RegisterProcessed(context.Background(), owner.ID, nil, files)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := env.documents.Get(docs[0].ID, intruder.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestDocumentDeleteRemovesStoredObject(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	uploads := []upstream.UploadPart{{FileName: "a.pdf", Content: []byte("bytes")}}
	files := []upstream.ProcessedFile{{ID: uuid.New(), FileName: "a.pdf"}}
	docs, err := env.documents.RegisterProcessed(context.Background(), user.ID, uploads, files)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	key := docs[0].StorageKey

	if err := env.documents.Delete(context.Background(), docs[0].ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.documents.Get(docs[0].ID, user.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("row survived delete: %v", err)
	}
	if len(env.store.deleted) != 1 || env.store.deleted[0] != key {
		t.Fatalf("object delete = %v, want [%s]", env.store.deleted, key)
	}
}

func TestDownloadURLUsesStorageKey(t *testing.T) {
	env := newTestEnv(t)
	user := createUser(t, env.db, "alice")

	files := []upstream.ProcessedFile{{ID: uuid.New(), FileName: "a.pdf"}}
	docs, err := env.documents.RegisterProcessed(context.Background(), user.ID, nil, files)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	url, err := env.documents.DownloadURL(context.Background(), docs[0].ID, user.ID)
	if err != nil {
		t.Fatalf("download url: %v", err)
	}
	if !strings.HasSuffix(url, docs[0].StorageKey) {
		t.Fatalf("url %q does not address %q", url, docs[0].StorageKey)
	}
}
