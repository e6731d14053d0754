package handler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pdfchat/internal/app"
	"pdfchat/internal/model"
	"pdfchat/internal/pkg/jwtutil"
	"pdfchat/internal/pkg/logger"
	"pdfchat/internal/repository"
	"pdfchat/internal/transport/http/middleware"
	"pdfchat/internal/upstream"
)

const testSecret = "handler-test-secret"

type testBackend struct {
	router    *gin.Engine
	db        *gorm.DB
	chat      *app.ChatService
	documents *app.DocumentService
	streamer  *fakeStreamer
	store     *fakeStore
}

func newTestBackend(t *testing.T, processor *upstream.ProcessorClient) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	log := logger.NewNop()
	sessionRepo := repository.NewChatSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	sessionDocRepo := repository.NewSessionDocumentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	folderRepo := repository.NewFolderRepository(db)

	streamer := &fakeStreamer{chunks: []string{"Hi", " there"}}
	store := newFakeStore()

	chatService := app.NewChatService(
		sessionRepo, messageRepo, sessionDocRepo, folderRepo, documentRepo,
		&fakeCache{}, &fakePublisher{}, streamer, log,
	)
	documentService := app.NewDocumentService(documentRepo, store, log)
	folderService := app.NewFolderService(folderRepo)
	authService := app.NewAuthService(repository.NewUserRepository(db), testSecret, time.Hour)

	authHandler := NewAuthHandler(authService)
	chatHandler := NewChatHandler(chatService)
	documentHandler := NewDocumentHandler(documentService)
	folderHandler := NewFolderHandler(folderService)
	uploadHandler := NewUploadHandler(processor, documentService)
	healthHandler := NewHealthHandler(db, nil, nil)

	router := gin.New()
	api := router.Group("/api")
	api.GET("/health", healthHandler.Check)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(testSecret), authHandler.Me)

	authed := api.Group("")
	authed.Use(middleware.AuthJWT(testSecret))
	authed.POST("/chat-sessions", chatHandler.CreateSession)
	authed.GET("/chat-sessions", chatHandler.ListSessions)
	authed.GET("/chat-sessions/:id", chatHandler.GetSession)
	authed.PATCH("/chat-sessions/:id", chatHandler.UpdateSession)
	authed.DELETE("/chat-sessions/:id", chatHandler.DeleteSession)
	authed.POST("/chat-sessions/:id/messages", chatHandler.AppendMessage)
	authed.GET("/chat-sessions/:id/messages", chatHandler.GetHistory)
	authed.POST("/chat-sessions/:id/documents", chatHandler.AttachDocument)
	authed.GET("/chat-sessions/:id/documents", chatHandler.ListSessionDocuments)
	authed.DELETE("/chat-sessions/:id/documents/:docID", chatHandler.DetachDocument)
	authed.POST("/folders", folderHandler.Create)
	authed.GET("/folders", folderHandler.List)
	authed.PATCH("/folders/:id", folderHandler.Rename)
	authed.DELETE("/folders/:id", folderHandler.Delete)
	authed.GET("/documents", documentHandler.List)
	authed.GET("/documents/:id", documentHandler.Get)
	authed.DELETE("/documents/:id", documentHandler.Delete)
	authed.GET("/documents/:id/download", documentHandler.DownloadURL)
	authed.POST("/upload", uploadHandler.Upload)
	authed.GET("/upload", uploadHandler.ListUploads)
	authed.POST("/chat/stream", chatHandler.StreamChat)

	return &testBackend{
		router:    router,
		db:        db,
		chat:      chatService,
		documents: documentService,
		streamer:  streamer,
		store:     store,
	}
}

func (b *testBackend) createUser(t *testing.T, username string) (*model.User, string) {
	t.Helper()
	user := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	if err := repository.NewUserRepository(b.db).Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := jwtutil.GenerateToken(testSecret, time.Hour, user.ID, user.Username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, "Bearer " + token
}

// fakeCache satisfies app.ConversationCache with no storage; every read is a
// miss so handlers always hit the database.
type fakeCache struct{}

func (fakeCache) GetHistory(context.Context, uuid.UUID) ([]model.Message, bool, error) {
	return nil, false, nil
}
func (fakeCache) SetHistory(context.Context, uuid.UUID, []model.Message) error { return nil }
func (fakeCache) DeleteHistory(context.Context, uuid.UUID) error               { return nil }
func (fakeCache) MarkDirty(context.Context, uuid.UUID) error                   { return nil }
func (fakeCache) IsDirty(context.Context, uuid.UUID) (bool, error)             { return false, nil }

type fakePublisher struct{}

func (fakePublisher) Publish(context.Context, model.Message) error { return nil }

type fakeStreamer struct {
	chunks []string
	err    error
}

func (f *fakeStreamer) StreamChat(_ context.Context, _ upstream.StreamRequest, onChunk func(string) error) (string, error) {
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

type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
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
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}
