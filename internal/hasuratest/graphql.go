package hasuratest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// gqlFailure is a resolver error carrying a Hasura error code.
type gqlFailure struct {
	message string
	code    string
}

func parseOperation(query string) (*ast.OperationDefinition, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("expected one operation, got %d", len(doc.Operations))
	}
	return doc.Operations[0], nil
}

func rootFields(op *ast.OperationDefinition) []*ast.Field {
	var fields []*ast.Field
	for _, sel := range op.SelectionSet {
		if f, ok := sel.(*ast.Field); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.serveWS(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, gqlErrorBody(err.Error(), "invalid-json"))
		return
	}

	op, err := parseOperation(req.Query)
	if err != nil {
		writeJSON(w, http.StatusOK, gqlErrorBody(err.Error(), "validation-failed"))
		return
	}
	if op.Operation == ast.Subscription {
		writeJSON(w, http.StatusOK, gqlErrorBody("subscriptions are only served over websocket", "validation-failed"))
		return
	}

	header := r.Header.Get("Authorization")
	s.mu.Lock()
	s.lastAuth = header
	s.mu.Unlock()

	userID, err := verifyBearer(header)
	if err != nil {
		if err == errMissingToken {
			writeJSON(w, http.StatusOK, gqlErrorBody("field not found in type: 'query_root'", "access-denied"))
			return
		}
		writeJSON(w, http.StatusOK, gqlErrorBody("Could not verify JWT: "+err.Error(), "invalid-jwt"))
		return
	}

	data := map[string]any{}
	for _, field := range rootFields(op) {
		value, fail := s.resolve(userID, field.Name, req.Variables)
		if fail != nil {
			writeJSON(w, http.StatusOK, gqlErrorBody(fail.message, fail.code))
			return
		}
		data[field.Alias] = value
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func str(vars map[string]any, key string) string {
	v, _ := vars[key].(string)
	return v
}

// resolve runs one root field. Mutations push fresh snapshots to live subscriptions.
func (s *Server) resolve(userID, field string, vars map[string]any) (any, *gqlFailure) {
	s.mu.Lock()
	s.calls[field]++
	if msg, ok := s.failures[field]; ok {
		delete(s.failures, field)
		s.mu.Unlock()
		return nil, &gqlFailure{message: msg, code: "unexpected"}
	}

	if field == "sendMessage" {
		// the AI handler may be slow; do not hold the lock while it runs
		ai := s.ai
		chatID := str(vars, "chat_id")
		_, owned := s.ownedChatLocked(userID, chatID)
		s.mu.Unlock()
		if !owned {
			return nil, &gqlFailure{message: "chat not found", code: "not-found"}
		}
		return ai(chatID, str(vars, "content")), nil
	}
	defer s.mu.Unlock()

	switch field {
	case "chats":
		if str(vars, "user_id") != userID {
			return []models.Chat{}, nil
		}
		return s.chatsLocked(userID), nil

	case "messages":
		chatID := str(vars, "chat_id")
		if _, ok := s.ownedChatLocked(userID, chatID); !ok {
			return []wireMessage{}, nil
		}
		return toWire(s.messagesLocked(chatID)), nil

	case "insert_chats_one":
		if str(vars, "user_id") != userID {
			return nil, &gqlFailure{message: "check constraint of an insert permission has failed", code: "permission-error"}
		}
		chat := s.insertChatLocked(userID, str(vars, "title"))
		s.broadcastLocked()
		return chat, nil

	case "delete_chats_by_pk":
		id := str(vars, "id")
		if _, ok := s.ownedChatLocked(userID, id); !ok {
			return nil, nil
		}
		delete(s.chats, id)
		kept := s.messages[:0]
		for _, m := range s.messages {
			if m.ChatID != id {
				kept = append(kept, m)
			}
		}
		s.messages = kept
		s.broadcastLocked()
		return map[string]string{"id": id}, nil

	case "update_chats_by_pk":
		row, ok := s.ownedChatLocked(userID, str(vars, "id"))
		if !ok {
			return nil, nil
		}
		row.Title = str(vars, "title")
		row.UpdatedAt = s.now()
		s.broadcastLocked()
		return row.Chat, nil

	case "insert_messages_one":
		chatID := str(vars, "chat_id")
		if _, ok := s.ownedChatLocked(userID, chatID); !ok || str(vars, "user_id") != userID {
			return nil, &gqlFailure{message: "foreign key violation on messages.chat_id", code: "constraint-violation"}
		}
		role := models.Role(str(vars, "role"))
		if !role.Valid() {
			return nil, &gqlFailure{message: "check constraint violation on messages.role", code: "constraint-violation"}
		}
		msg := s.insertMessageLocked(chatID, role, str(vars, "content"), userID)
		s.broadcastLocked()
		return toWire([]models.Message{msg})[0], nil
	}

	return nil, &gqlFailure{message: fmt.Sprintf("field '%s' not found in type: 'query_root'", field), code: "validation-failed"}
}

func (s *Server) ownedChatLocked(userID, chatID string) (*chatRow, bool) {
	row, ok := s.chats[chatID]
	if !ok || row.userID != userID {
		return nil, false
	}
	return row, true
}

// headerValue finds a header in a connection_init payload regardless of key case.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
