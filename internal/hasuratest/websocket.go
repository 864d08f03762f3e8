package hasuratest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/vektah/gqlparser/v2/ast"
)

const subprotocol = "graphql-transport-ws"

// CloseForbidden is the close code sent when connection_init carries no valid token.
const CloseForbidden = 4403

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	Subprotocols:    []string{subprotocol},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn serializes writes through a single writer goroutine.
type wsConn struct {
	out chan wsMessage
}

// send enqueues msg without blocking; a full queue drops the message, like a coalesced live query.
func (c *wsConn) send(msg wsMessage) {
	select {
	case c.out <- msg:
	default:
	}
}

type subscription struct {
	id     string
	conn   *wsConn
	field  string
	vars   map[string]any
	userID string
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	var hello wsMessage
	if err := ws.ReadJSON(&hello); err != nil || hello.Type != "connection_init" {
		return
	}
	var initPayload struct {
		Headers map[string]string `json:"headers"`
	}
	_ = json.Unmarshal(hello.Payload, &initPayload)

	userID, err := verifyBearer(headerValue(initPayload.Headers, "authorization"))
	if err != nil {
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(CloseForbidden, "Forbidden"))
		return
	}

	conn := &wsConn{out: make(chan wsMessage, 64)}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range conn.out {
			if err := ws.WriteJSON(msg); err != nil {
				return
			}
		}
	}()
	defer func() {
		s.mu.Lock()
		for sub := range s.subs {
			if sub.conn == conn {
				delete(s.subs, sub)
			}
		}
		close(conn.out)
		s.mu.Unlock()
		<-writerDone
	}()

	s.mu.Lock()
	conn.send(wsMessage{Type: "connection_ack"})
	s.mu.Unlock()

	for {
		var msg wsMessage
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			s.subscribe(conn, userID, msg)
		case "complete":
			s.mu.Lock()
			for sub := range s.subs {
				if sub.conn == conn && sub.id == msg.ID {
					delete(s.subs, sub)
				}
			}
			s.mu.Unlock()
		case "ping":
			s.mu.Lock()
			conn.send(wsMessage{Type: "pong"})
			s.mu.Unlock()
		}
	}
}

func (s *Server) subscribe(conn *wsConn, userID string, msg wsMessage) {
	var payload gqlRequest
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.sendError(conn, msg.ID, err.Error())
		return
	}

	op, err := parseOperation(payload.Query)
	if err != nil {
		s.sendError(conn, msg.ID, err.Error())
		return
	}
	fields := rootFields(op)
	if op.Operation != ast.Subscription || len(fields) != 1 {
		s.sendError(conn, msg.ID, "expected a subscription with one root field")
		return
	}

	sub := &subscription{id: msg.ID, conn: conn, field: fields[0].Name, vars: payload.Variables, userID: userID}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["subscription:"+sub.field]++
	s.subs[sub] = struct{}{}
	s.pushLocked(sub)
}

func (s *Server) sendError(conn *wsConn, id, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn.send(wsMessage{ID: id, Type: "error", Payload: mustJSON([]map[string]string{{"message": message}})})
}

// pushLocked sends the current result of a subscription's live query.
func (s *Server) pushLocked(sub *subscription) {
	var data any
	switch sub.field {
	case "chats":
		chats := s.chatsLocked(sub.userID)
		if str(sub.vars, "user_id") != sub.userID {
			chats = []models.Chat{}
		}
		data = map[string]any{"chats": chats}
	case "messages":
		chatID := str(sub.vars, "chat_id")
		msgs := []wireMessage{}
		if _, ok := s.ownedChatLocked(sub.userID, chatID); ok {
			msgs = toWire(s.messagesLocked(chatID))
		}
		data = map[string]any{"messages": msgs}
	default:
		sub.conn.send(wsMessage{ID: sub.id, Type: "error", Payload: mustJSON([]map[string]string{{"message": "unknown field " + sub.field}})})
		delete(s.subs, sub)
		return
	}
	sub.conn.send(wsMessage{ID: sub.id, Type: "next", Payload: mustJSON(map[string]any{"data": data})})
}

func (s *Server) broadcastLocked() {
	for sub := range s.subs {
		s.pushLocked(sub)
	}
}

// CompleteSubscriptions ends every running subscription from the server side.
func (s *Server) CompleteSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.conn.send(wsMessage{ID: sub.id, Type: "complete"})
		delete(s.subs, sub)
	}
}

// PingAll sends a protocol ping on every open subscription connection.
func (s *Server) PingAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[*wsConn]bool{}
	for sub := range s.subs {
		if !seen[sub.conn] {
			seen[sub.conn] = true
			sub.conn.send(wsMessage{Type: "ping"})
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
