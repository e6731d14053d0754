package app

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfchat/internal/model"
	"pdfchat/internal/repository"
	"pdfchat/internal/upstream"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrMessageEmpty    = errors.New("message content is empty")
)

const defaultSessionTitle = "New Chat"

// ConversationCache is the read-through history cache used by History. The
// dirty marker covers the window where a streamed turn is persisted
// asynchronously and the database does not yet hold the full transcript.
type ConversationCache interface {
	GetHistory(ctx context.Context, sessionID uuid.UUID) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uuid.UUID, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uuid.UUID) error
	MarkDirty(ctx context.Context, sessionID uuid.UUID) error
	IsDirty(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// TurnPublisher hands finished conversation turns to the persistence worker.
type TurnPublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

// StreamClient produces the assistant reply as an incremental stream.
type StreamClient interface {
	StreamChat(ctx context.Context, request upstream.StreamRequest, onChunk func(chunk string) error) (string, error)
}

type ChatService struct {
	sessionRepo    *repository.ChatSessionRepository
	messageRepo    *repository.MessageRepository
	sessionDocRepo *repository.SessionDocumentRepository
	folderRepo     *repository.FolderRepository
	documentRepo   *repository.DocumentRepository
	histories      ConversationCache
	publisher      TurnPublisher
	streamer       StreamClient
	logger         *zap.SugaredLogger
}

func NewChatService(
	sessionRepo *repository.ChatSessionRepository,
	messageRepo *repository.MessageRepository,
	sessionDocRepo *repository.SessionDocumentRepository,
	folderRepo *repository.FolderRepository,
	documentRepo *repository.DocumentRepository,
	histories ConversationCache,
	publisher TurnPublisher,
	streamer StreamClient,
	logger *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		sessionRepo:    sessionRepo,
		messageRepo:    messageRepo,
		sessionDocRepo: sessionDocRepo,
		folderRepo:     folderRepo,
		documentRepo:   documentRepo,
		histories:      histories,
		publisher:      publisher,
		streamer:       streamer,
		logger:         logger,
	}
}

type CreateSessionInput struct {
	Title       string
	Description *string
	FolderID    *uuid.UUID
}

func (s *ChatService) CreateSession(userID uuid.UUID, input CreateSessionInput) (*model.ChatSession, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultSessionTitle
	}

	if input.FolderID != nil {
		folder, err := s.folderRepo.GetByIDAndUserID(*input.FolderID, userID)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, ErrFolderNotFound
		}
	}

	session := &model.ChatSession{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		FolderID:    input.FolderID,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uuid.UUID) ([]model.ChatSession, error) {
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) GetSession(sessionID, userID uuid.UUID) (*model.ChatSession, error) {
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

type UpdateSessionInput struct {
	Title       *string
	Description *string
	IsArchived  *bool
	FolderID    *uuid.UUID
	ClearFolder bool
}

func (s *ChatService) UpdateSession(sessionID, userID uuid.UUID, input UpdateSessionInput) (*model.ChatSession, error) {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return nil, err
	}

	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ErrInvalidInput
	}
	if input.FolderID != nil {
		folder, err := s.folderRepo.GetByIDAndUserID(*input.FolderID, userID)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, ErrFolderNotFound
		}
	}

	return s.sessionRepo.Update(sessionID, repository.SessionUpdate{
		Title:       input.Title,
		Description: input.Description,
		IsArchived:  input.IsArchived,
		FolderID:    input.FolderID,
		ClearFolder: input.ClearFolder,
	})
}

func (s *ChatService) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return err
	}

	if err := s.messageRepo.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessionDocRepo.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}

	if err := s.histories.DeleteHistory(ctx, sessionID); err != nil {
		s.logger.Warnw("failed to drop cached history", "session_id", sessionID, "error", err)
	}
	return nil
}

type AppendMessageInput struct {
	Role    string
	Content string
}

// AppendMessage persists a single turn into an owned session. The insert and
// the session timestamp touch commit together.
func (s *ChatService) AppendMessage(ctx context.Context, sessionID, userID uuid.UUID, input AppendMessageInput) (*model.Message, error) {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return nil, err
	}
	if !model.ValidRole(input.Role) {
		return nil, ErrInvalidRole
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrMessageEmpty
	}

	message := &model.Message{
		SessionID: sessionID,
		Role:      input.Role,
		Content:   input.Content,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}

	s.invalidateHistory(ctx, sessionID)
	return message, nil
}

// History returns the session's messages oldest first, serving from the cache
// when it holds a clean copy. While the dirty marker is set the cache is
// bypassed and not refilled, since async turn persistence may still be in
// flight.
func (s *ChatService) History(ctx context.Context, sessionID, userID uuid.UUID) ([]model.Message, error) {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return nil, err
	}

	dirty, err := s.histories.IsDirty(ctx, sessionID)
	if err != nil {
		s.logger.Warnw("dirty marker check failed", "session_id", sessionID, "error", err)
		dirty = true
	}

	if !dirty {
		cached, ok, err := s.histories.GetHistory(ctx, sessionID)
		if err != nil {
			s.logger.Warnw("history cache read failed", "session_id", sessionID, "error", err)
		}
		if err == nil && ok {
			return cached, nil
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if !dirty {
		if err := s.histories.SetHistory(ctx, sessionID, messages); err != nil {
			s.logger.Warnw("history cache write failed", "session_id", sessionID, "error", err)
		}
	}
	return messages, nil
}

func (s *ChatService) AttachDocument(sessionID, userID, documentID uuid.UUID) error {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return err
	}
	doc, err := s.documentRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return s.sessionDocRepo.Attach(sessionID, documentID)
}

func (s *ChatService) SessionDocuments(sessionID, userID uuid.UUID) ([]model.Document, error) {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return nil, err
	}
	return s.sessionDocRepo.ListDocumentsBySessionID(sessionID)
}

func (s *ChatService) DetachDocument(sessionID, userID, documentID uuid.UUID) error {
	if _, err := s.GetSession(sessionID, userID); err != nil {
		return err
	}
	return s.sessionDocRepo.Detach(sessionID, documentID)
}

type StreamInput struct {
	SessionID      *uuid.UUID
	DocID          *uuid.UUID
	Content        string
	ForceWebSearch bool
}

// StreamConversation drives one chat turn. It resolves or lazily creates the
// target session, notifies onStart before any chunk is produced, relays the
// upstream stream through onChunk, and enqueues both sides of the turn for
// the persistence worker once the assistant reply is complete.
func (s *ChatService) StreamConversation(
	ctx context.Context,
	userID uuid.UUID,
	input StreamInput,
	onStart func(session *model.ChatSession) error,
	onChunk func(chunk string) error,
) error {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return ErrMessageEmpty
	}

	var session *model.ChatSession
	if input.SessionID != nil {
		found, err := s.GetSession(*input.SessionID, userID)
		if err != nil {
			return err
		}
		session = found
	} else {
		created, err := s.CreateSession(userID, CreateSessionInput{})
		if err != nil {
			return err
		}
		session = created
	}

	if input.DocID != nil {
		if err := s.AttachDocument(session.ID, userID, *input.DocID); err != nil {
			return err
		}
	}

	if onStart != nil {
		if err := onStart(session); err != nil {
			return err
		}
	}

	turns, err := s.conversationTurns(session.ID, content)
	if err != nil {
		return err
	}

	sid := session.ID.String()
	request := upstream.StreamRequest{
		ForceWebSearch: input.ForceWebSearch,
		SessionID:      &sid,
		Messages:       turns,
	}
	if input.DocID != nil {
		request.DocID = input.DocID.String()
	}

	s.enqueueTurn(ctx, session.ID, model.RoleUser, content)

	reply, err := s.streamer.StreamChat(ctx, request, onChunk)
	if err != nil {
		return err
	}

	if reply != "" {
		s.enqueueTurn(ctx, session.ID, model.RoleAssistant, reply)
	}

	s.invalidateHistory(ctx, session.ID)
	return nil
}

// invalidateHistory drops the cached transcript and raises the dirty marker so
// readers fall through to the database until the marker expires.
func (s *ChatService) invalidateHistory(ctx context.Context, sessionID uuid.UUID) {
	if err := s.histories.DeleteHistory(ctx, sessionID); err != nil {
		s.logger.Warnw("failed to drop cached history", "session_id", sessionID, "error", err)
	}
	if err := s.histories.MarkDirty(ctx, sessionID); err != nil {
		s.logger.Warnw("failed to mark history dirty", "session_id", sessionID, "error", err)
	}
}

// conversationTurns builds the upstream message list from the persisted
// history plus the incoming user message.
func (s *ChatService) conversationTurns(sessionID uuid.UUID, content string) ([]upstream.TurnMessage, error) {
	history, err := s.messageRepo.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]upstream.TurnMessage, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, upstream.TurnMessage{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, upstream.TurnMessage{Role: model.RoleUser, Content: content})
	return turns, nil
}

// enqueueTurn falls back to a direct insert when the broker rejects the
// publish, so a finished turn is never lost.
func (s *ChatService) enqueueTurn(ctx context.Context, sessionID uuid.UUID, role, content string) {
	msg := model.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}
	err := s.publisher.Publish(ctx, msg)
	if err == nil {
		return
	}
	s.logger.Warnw("turn publish failed, persisting inline", "session_id", sessionID, "role", role, "error", err)
	if err := s.messageRepo.Create(&msg); err != nil {
		s.logger.Errorw("inline turn persistence failed", "session_id", sessionID, "role", role, "error", err)
	}
}
