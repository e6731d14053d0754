package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pdfchat/internal/model"
	"pdfchat/internal/pkg/logger"
	"pdfchat/internal/repository"
	"pdfchat/internal/upstream"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One pooled connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&model.User{},
		&model.Folder{},
		&model.Document{},
		&model.ChatSession{},
		&model.Message{},
		&model.ChatSessionDocument{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeCache is an in-memory ConversationCache.
type fakeCache struct {
	mu      sync.Mutex
	history map[uuid.UUID][]model.Message
	dirty   map[uuid.UUID]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		history: map[uuid.UUID][]model.Message{},
		dirty:   map[uuid.UUID]bool{},
	}
}

func (f *fakeCache) GetHistory(_ context.Context, sessionID uuid.UUID) ([]model.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.history[sessionID]
	if !ok {
		return nil, false, nil
	}
	return msgs, true, nil
}

func (f *fakeCache) SetHistory(_ context.Context, sessionID uuid.UUID, messages []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[sessionID] = messages
	return nil
}

func (f *fakeCache) DeleteHistory(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.history, sessionID)
	return nil
}

func (f *fakeCache) MarkDirty(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[sessionID] = true
	return nil
}

func (f *fakeCache) IsDirty(_ context.Context, sessionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty[sessionID], nil
}

func (f *fakeCache) clearDirty(sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.dirty, sessionID)
}

// fakePublisher records published turns instead of talking to a broker.
type fakePublisher struct {
	mu        sync.Mutex
	published []model.Message
	fail      bool
}

func (f *fakePublisher) Publish(_ context.Context, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, msg)
	return nil
}

// fakeStreamer replays a fixed set of chunks.
type fakeStreamer struct {
	chunks  []string
	lastReq upstream.StreamRequest
	err     error
}

func (f *fakeStreamer) StreamChat(_ context.Context, request upstream.StreamRequest, onChunk func(string) error) (string, error) {
	f.lastReq = request
	if f.err != nil {
		return "", f.err
	}
	var full string
	for _, chunk := range f.chunks {
		if err := onChunk(chunk); err != nil {
			return "", err
		}
		full += chunk
	}
	return full, nil
}

// fakeStore records object-store traffic.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = b
	return nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://store.test/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type testEnv struct {
	db        *gorm.DB
	chat      *ChatService
	documents *DocumentService
	folders   *FolderService
	cache     *fakeCache
	publisher *fakePublisher
	streamer  *fakeStreamer
	store     *fakeStore
	msgRepo   *repository.MessageRepository
	docRepo   *repository.DocumentRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()

	sessionRepo := repository.NewChatSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	sessionDocRepo := repository.NewSessionDocumentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	folderRepo := repository.NewFolderRepository(db)

	env := &testEnv{
		db:        db,
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		streamer:  &fakeStreamer{chunks: []string{"Hi", " there"}},
		store:     newFakeStore(),
		msgRepo:   messageRepo,
		docRepo:   documentRepo,
	}
	env.chat = NewChatService(
		sessionRepo, messageRepo, sessionDocRepo, folderRepo, documentRepo,
		env.cache, env.publisher, env.streamer, log,
	)
	env.documents = NewDocumentService(documentRepo, env.store, log)
	env.folders = NewFolderService(folderRepo)
	return env
}

func createUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	if err := repository.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}
