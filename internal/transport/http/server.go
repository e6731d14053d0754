package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "pdfchat/internal/app"
	"pdfchat/internal/bootstrap"
	"pdfchat/internal/cache"
	"pdfchat/internal/platform/rabbitmq"
	"pdfchat/internal/repository"
	"pdfchat/internal/transport/http/handler"
	"pdfchat/internal/transport/http/middleware"
	"pdfchat/internal/upstream"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	userRepo := repository.NewUserRepository(app.DB)
	sessionRepo := repository.NewChatSessionRepository(app.DB)
	messageRepo := repository.NewMessageRepository(app.DB)
	sessionDocRepo := repository.NewSessionDocumentRepository(app.DB)
	documentRepo := repository.NewDocumentRepository(app.DB)
	folderRepo := repository.NewFolderRepository(app.DB)

	histories := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	publisher := rabbitmq.NewTurnPublisher(app.MQConn, app.Config.RabbitMQ.TurnPersistQueue)
	inference := upstream.NewInferenceClient(app.Config.Upstream.BaseURL)
	processor := upstream.NewProcessorClient(
		app.Config.Upstream.BaseURL,
		time.Duration(app.Config.Upstream.UploadMaxSeconds)*time.Second,
		app.Config.Upstream.UploadRetries,
		time.Duration(app.Config.Upstream.UploadRetryDelayMS)*time.Millisecond,
	)

	// A nil typed pointer must not become a non-nil ObjectStore.
	var store appsvc.ObjectStore
	if app.Store != nil {
		store = app.Store
	}

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		sessionRepo, messageRepo, sessionDocRepo, folderRepo, documentRepo,
		histories, publisher, inference, app.Logger,
	)
	documentService := appsvc.NewDocumentService(documentRepo, store, app.Logger)
	folderService := appsvc.NewFolderService(folderRepo)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	documentHandler := handler.NewDocumentHandler(documentService)
	folderHandler := handler.NewFolderHandler(folderService)
	uploadHandler := handler.NewUploadHandler(processor, documentService)
	healthHandler := handler.NewHealthHandler(app.DB, app.Redis, app.MQConn)

	api := router.Group("/api")
	api.GET("/health", healthHandler.Check)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	authed := api.Group("")
	authed.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

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

	return router
}
