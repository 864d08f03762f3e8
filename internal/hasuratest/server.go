// Package hasuratest runs an in-process fake of the Nhost auth service and the Hasura GraphQL
// engine, good enough for exercising the client against real HTTP and websocket transports.
//
// Documents are parsed with gqlparser and dispatched on their root field; responses carry whole
// rows regardless of the selection set.
package hasuratest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/chatbot-go/internal/models"
)

// Paths served by the fake.
const (
	GraphQLPath = "/v1/graphql"
	AuthPath    = "/auth/v1"
)

// AIHandler produces the AI action result for a chat and user text.
type AIHandler func(chatID, content string) models.SendMessageResult

// EchoAI replies with the user's text prefixed by "echo: ".
func EchoAI(_ string, content string) models.SendMessageResult {
	reply := "echo: " + content
	id := uuid.NewString()
	return models.SendMessageResult{MessageID: &id, Content: &reply, Success: true}
}

type user struct {
	id       string
	email    string
	password string
	refresh  string
}

type chatRow struct {
	models.Chat
	userID string
}

// Server is the fake backend. Create it with NewServer.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*user // by email
	chats    map[string]*chatRow
	messages []models.Message
	calls    map[string]int
	failures map[string]string // root field -> error message for the next call
	ai       AIHandler
	clock    time.Time
	tokenTTL time.Duration
	lastAuth string
	subs     map[*subscription]struct{}
}

// NewServer starts a fake backend. It is closed automatically when the test ends.
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		users:    make(map[string]*user),
		chats:    make(map[string]*chatRow),
		calls:    make(map[string]int),
		failures: make(map[string]string),
		ai:       EchoAI,
		clock:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		tokenTTL: 15 * time.Minute,
		subs:     make(map[*subscription]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(GraphQLPath, s.handleGraphQL)
	mux.HandleFunc(AuthPath+"/signin/email-password", s.handleSignIn)
	mux.HandleFunc(AuthPath+"/signup/email-password", s.handleSignUp)
	mux.HandleFunc(AuthPath+"/token", s.handleRefresh)
	mux.HandleFunc(AuthPath+"/signout", s.handleSignOut)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// GraphQLURL is the HTTP GraphQL endpoint.
func (s *Server) GraphQLURL() string { return s.URL + GraphQLPath }

// AuthURL is the auth service base URL.
func (s *Server) AuthURL() string { return s.URL + AuthPath }

// AddUser registers a user and returns its id.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password).id
}

func (s *Server) addUserLocked(email, password string) *user {
	u := &user{id: uuid.NewString(), email: email, password: password}
	s.users[email] = u
	return u
}

// SetAIHandler replaces the AI action implementation.
func (s *Server) SetAIHandler(h AIHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ai = h
}

// SetTokenTTL changes the lifetime of newly minted access tokens.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = d
}

// FailNext makes the next call to the given root field (e.g. "insert_messages_one") return a
// GraphQL error with message.
func (s *Server) FailNext(field, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[field] = message
}

// Calls returns how many times a root field was resolved. Auth endpoints are counted under
// "auth:signin", "auth:token" and so on, subscriptions under "subscription:<field>".
func (s *Server) Calls(field string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[field]
}

// TotalGraphQLCalls counts every GraphQL operation received over HTTP.
func (s *Server) TotalGraphQLCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for k, v := range s.calls {
		if !strings.HasPrefix(k, "auth:") && !strings.HasPrefix(k, "subscription:") {
			total += v
		}
	}
	return total
}

// LastAuthorization returns the Authorization header of the most recent HTTP GraphQL call.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// SeedChat inserts a chat directly, bypassing the API.
func (s *Server) SeedChat(userID, title string) models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := s.insertChatLocked(userID, title)
	s.broadcastLocked()
	return chat
}

// SeedMessage inserts a message directly, bypassing the API.
func (s *Server) SeedMessage(chatID string, role models.Role, content, userID string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.insertMessageLocked(chatID, role, content, userID)
	s.broadcastLocked()
	return msg
}

// Messages returns every stored message of a chat in creation order.
func (s *Server) Messages(chatID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked(chatID)
}

// Chats returns the stored chats of a user, most recently updated first.
func (s *Server) Chats(userID string) []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatsLocked(userID)
}

// ActiveSubscriptions reports how many subscriptions are currently running.
func (s *Server) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// now advances the fake clock so every row gets a distinct, increasing timestamp.
func (s *Server) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Server) insertChatLocked(userID, title string) models.Chat {
	ts := s.now()
	row := &chatRow{
		Chat:   models.Chat{ID: uuid.NewString(), Title: title, CreatedAt: ts, UpdatedAt: ts},
		userID: userID,
	}
	s.chats[row.ID] = row
	return row.Chat
}

func (s *Server) insertMessageLocked(chatID string, role models.Role, content, userID string) models.Message {
	ts := s.now()
	msg := models.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: ts,
		UserID:    userID,
	}
	s.messages = append(s.messages, msg)
	if row, ok := s.chats[chatID]; ok {
		row.UpdatedAt = ts
	}
	return msg
}

func (s *Server) messagesLocked(chatID string) []models.Message {
	out := []models.Message{}
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Server) chatsLocked(userID string) []models.Chat {
	out := []models.Chat{}
	for _, row := range s.chats {
		if row.userID != userID {
			continue
		}
		chat := row.Chat
		chat.Messages = nil
		if msgs := s.messagesLocked(row.ID); len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			chat.Messages = []models.MessagePreview{{Content: last.Content, CreatedAt: last.CreatedAt}}
		}
		out = append(out, chat)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// wire shapes: the real engine omits chat_id from message selections
type wireMessage struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UserID    string      `json:"user_id"`
}

func toWire(msgs []models.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, wireMessage{ID: m.ID, Content: m.Content, Role: m.Role, CreatedAt: m.CreatedAt, UserID: m.UserID})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func gqlErrorBody(message, code string) map[string]any {
	return map[string]any{
		"errors": []map[string]any{{
			"message":    message,
			"extensions": map[string]any{"code": code, "path": "$"},
		}},
	}
}
