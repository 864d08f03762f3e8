// Package service provides the chat workflows that sit between the UI and the data layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/chatbot-go/internal/client"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/raphaelgruber/chatbot-go/internal/store"
)

// Validation errors returned by Submit. None of them triggers a network call.
var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrNoActiveChat     = errors.New("no active chat")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrMessageTooLong   = fmt.Errorf("message exceeds %d characters", models.MaxMessageLength)
	ErrEmptyTitle       = errors.New("chat title is empty")
)

// Notice texts shown to the user.
const (
	msgTooLong        = "Message is too long. Maximum 2000 characters allowed."
	msgSendFailed     = "Failed to send message"
	msgCreateFailed   = "Failed to create chat"
	msgDeleteFailed   = "Failed to delete chat"
	msgRenameFailed   = "Failed to rename chat"
	msgLoadFailed     = "Failed to load conversations"
	msgLiveFailed     = "Live updates stopped"
	msgSessionExpired = "Session expired. Please sign in again."
	msgChatCreated    = "New chat created successfully"
	msgChatDeleted    = "Chat deleted successfully"
	msgChatRenamed    = "Chat renamed successfully"
)

const (
	newChatTitleBase   = "New Chat "
	newChatTitleLayout = "3:04:05 PM"
)

// DataLayer is the subset of the GraphQL client the chat workflows use.
type DataLayer interface {
	InsertMessage(ctx context.Context, in client.NewMessage) (*models.Message, error)
	SendMessage(ctx context.Context, chatID, content string) (*models.SendMessageResult, error)
	CreateChat(ctx context.Context, title, userID string) (*models.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	UpdateChatTitle(ctx context.Context, id, title string) (*models.Chat, error)
}

// Identity reports the signed-in user's id ("" when signed out).
type Identity interface {
	UserID() string
}

// SignOuter ends the auth session.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notice is a transient, user-visible notification.
type Notice struct {
	Level Level
	Title string
	Text  string
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Draft is the message being composed. Submit clears it before sending and
// restores it when sending fails.
type Draft interface {
	Text() string
	Clear()
	Restore(text string)
}

// ChatService runs the send-message flow and the chat list actions.
type ChatService struct {
	store    *store.Store
	data     DataLayer
	identity Identity
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewChatService creates a chat service. A nil notifier discards notices; a nil logger uses slog.Default.
func NewChatService(st *store.Store, data DataLayer, identity Identity, notifier Notifier, logger *slog.Logger) *ChatService {
	if notifier == nil {
		notifier = NotifierFunc(func(Notice) {})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		store:    st,
		data:     data,
		identity: identity,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ChatService) info(text string) {
	s.notifier.Notify(Notice{Level: LevelInfo, Title: "Success", Text: text})
}

func (s *ChatService) fail(text string) {
	s.notifier.Notify(Notice{Level: LevelError, Title: "Error", Text: text})
}

// Submit sends the draft to the active chat: it stores the user message, asks the AI
// action for a reply and stores the reply. On failure the user is notified and the
// draft is restored. The typing indicator is on while the AI action runs.
func (s *ChatService) Submit(ctx context.Context, draft Draft) (err error) {
	text := draft.Text()
	chatID := s.store.ActiveChat()
	userID := s.identity.UserID()

	switch {
	case strings.TrimSpace(text) == "":
		return ErrEmptyMessage
	case chatID == "":
		return ErrNoActiveChat
	case userID == "":
		return ErrNotAuthenticated
	}

	if models.ContentLength(text) > models.MaxMessageLength {
		s.fail(msgTooLong)
		return ErrMessageTooLong
	}

	content := strings.TrimSpace(text)
	draft.Clear()

	defer func() {
		if err != nil {
			s.logger.Error("send message failed", "chat_id", chatID, "error", err)
			s.fail(errorText(err, msgSendFailed))
			draft.Restore(content)
		}
	}()

	if _, err := s.data.InsertMessage(ctx, client.NewMessage{
		ChatID:  chatID,
		Content: content,
		Role:    models.RoleUser,
		UserID:  userID,
	}); err != nil {
		return fmt.Errorf("insert user message: %w", err)
	}

	s.store.SetTyping(true)
	defer s.store.SetTyping(false)

	result, err := s.data.SendMessage(ctx, chatID, content)
	if err != nil {
		return fmt.Errorf("ai action: %w", err)
	}

	if reply, ok := result.Reply(); ok {
		if _, err := s.data.InsertMessage(ctx, client.NewMessage{
			ChatID:  chatID,
			Content: reply,
			Role:    models.RoleAssistant,
			UserID:  userID,
		}); err != nil {
			return fmt.Errorf("insert assistant message: %w", err)
		}
		return nil
	}
	if msg, ok := result.Failure(); ok {
		return &AIError{Message: msg}
	}

	// neither content nor an error: nothing to store
	s.logger.Warn("ai action returned no content", "chat_id", chatID, "success", result.Success)
	return nil
}

// AIError is a failure reported by the AI action in its response envelope.
type AIError struct {
	Message string
}

func (e *AIError) Error() string { return "ai action: " + e.Message }

// NewChat creates a chat titled after the current time and selects it.
func (s *ChatService) NewChat(ctx context.Context) (*models.Chat, error) {
	userID := s.identity.UserID()
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	title := newChatTitleBase + s.now().Format(newChatTitleLayout)
	chat, err := s.data.CreateChat(ctx, title, userID)
	if err != nil {
		s.logger.Error("create chat failed", "error", err)
		s.fail(errorText(err, msgCreateFailed))
		return nil, err
	}

	s.store.SetActiveChat(chat.ID)
	s.info(msgChatCreated)
	s.logger.Info("chat created", "chat_id", chat.ID)
	return chat, nil
}

// DeleteChat deletes a chat. Deleting the active chat deselects it first.
func (s *ChatService) DeleteChat(ctx context.Context, id string) error {
	if id == s.store.ActiveChat() {
		s.store.SetActiveChat("")
	}

	if err := s.data.DeleteChat(ctx, id); err != nil {
		s.logger.Error("delete chat failed", "chat_id", id, "error", err)
		s.fail(errorText(err, msgDeleteFailed))
		return err
	}

	s.info(msgChatDeleted)
	s.logger.Info("chat deleted", "chat_id", id)
	return nil
}

// RenameChat changes a chat's title.
func (s *ChatService) RenameChat(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	if _, err := s.data.UpdateChatTitle(ctx, id, title); err != nil {
		s.logger.Error("rename chat failed", "chat_id", id, "error", err)
		s.fail(errorText(err, msgRenameFailed))
		return err
	}

	s.info(msgChatRenamed)
	return nil
}

// SelectChat makes id the active chat.
func (s *ChatService) SelectChat(id string) {
	s.store.SetActiveChat(id)
}

// SignOut ends the session and forgets everything the store held for the user.
func (s *ChatService) SignOut(ctx context.Context, auth SignOuter) error {
	err := auth.SignOut(ctx)
	if err != nil {
		s.logger.Warn("sign out request failed", "error", err)
	}
	s.store.Clear()
	s.store.SetChats(nil)
	return err
}

// errorText returns the message to show for a failed backend call. Only messages the
// backend wrote are shown as is; transport and decoding errors get the fallback.
func errorText(err error, fallback string) string {
	var aiErr *AIError
	var gqlErr *client.GraphQLError
	switch {
	case errors.As(err, &aiErr) && aiErr.Message != "":
		return aiErr.Message
	case errors.Is(err, client.ErrUnauthenticated):
		return msgSessionExpired
	case errors.As(err, &gqlErr) && gqlErr.Message != "":
		return gqlErr.Message
	}
	return fallback
}
