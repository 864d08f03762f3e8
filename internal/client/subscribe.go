package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/chatbot-go/internal/metrics"
)

// graphql-transport-ws protocol message types
const (
	gqlConnectionInit      = "connection_init"
	gqlConnectionAck       = "connection_ack"
	gqlSubscribe           = "subscribe"
	gqlNext                = "next"
	gqlError               = "error"
	gqlComplete            = "complete"
	gqlPing                = "ping"
	gqlPong                = "pong"
	gqlConnectionKeepAlive = "ka"
)

// close codes the server uses to reject connection_init
const (
	closeUnauthorized = 4401
	closeForbidden    = 4403
)

// Subprotocol is the websocket subprotocol spoken by Subscribe.
const Subprotocol = "graphql-transport-ws"

// wsMessage represents a graphql-transport-ws protocol message.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsSubscribePayload is the payload for subscribe messages.
type wsSubscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// wsInitPayload carries auth headers the way the engine expects them on connection_init.
type wsInitPayload struct {
	Headers map[string]string `json:"headers"`
}

// Subscribe runs a subscription and calls onData with the data field of every pushed result.
// It blocks until the server completes the subscription, an error occurs, onData returns an
// error, or ctx is cancelled (in which case ctx.Err() is returned).
func (c *Client) Subscribe(ctx context.Context, query string, variables map[string]any, onData func(data json.RawMessage) error) error {
	info, err := c.operation(query)
	if err != nil {
		return err
	}
	if info.kind != kindSubscription {
		return fmt.Errorf("%s: %w", info.name, ErrWrongTransport)
	}

	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{Subprotocol},
	}

	conn, _, err := dialer.DialContext(ctx, c.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// gorilla allows one concurrent writer; the read loop and the cancel watcher both write.
	var writeMu sync.Mutex
	write := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { conn.Close() })
	}
	defer closeConn()

	// unblocks any pending read on cancellation, including the wait for connection_ack
	subscriptionID := uuid.New().String()
	var subscribed atomic.Bool
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if subscribed.Load() {
				_ = write(wsMessage{ID: subscriptionID, Type: gqlComplete})
			}
			closeConn()
		case <-done:
		}
	}()

	initPayload, _ := json.Marshal(wsInitPayload{Headers: headers})
	if err := write(wsMessage{Type: gqlConnectionInit, Payload: initPayload}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send connection_init: %w", err)
	}

	var ackMsg wsMessage
	if err := conn.ReadJSON(&ackMsg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if websocket.IsCloseError(err, closeForbidden, closeUnauthorized) {
			return fmt.Errorf("connection_init rejected: %w", ErrUnauthenticated)
		}
		return fmt.Errorf("read connection_ack: %w", err)
	}
	if ackMsg.Type != gqlConnectionAck {
		return fmt.Errorf("expected connection_ack, got %s", ackMsg.Type)
	}

	payload, _ := json.Marshal(wsSubscribePayload{
		Query:     query,
		Variables: variables,
	})
	if err := write(wsMessage{ID: subscriptionID, Type: gqlSubscribe, Payload: payload}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send subscribe: %w", err)
	}
	subscribed.Store(true)
	c.logger.Debug("subscription started", "operation", info.name, "id", subscriptionID)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case gqlNext:
			if msg.ID != subscriptionID {
				continue
			}
			start := time.Now()
			var result graphQLResponse
			if err := json.Unmarshal(msg.Payload, &result); err != nil {
				return fmt.Errorf("unmarshal next payload: %w", err)
			}
			if len(result.Errors) > 0 {
				return toGraphQLError(result.Errors[0])
			}
			err := onData(result.Data)
			c.metrics.Observe(metrics.OpSubscriptionEvent, start, err)
			if err != nil {
				return err
			}

		case gqlError:
			var errs []graphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil {
				return fmt.Errorf("subscription error: %s", string(msg.Payload))
			}
			if len(errs) > 0 {
				return toGraphQLError(errs[0])
			}
			return fmt.Errorf("subscription error: unknown")

		case gqlComplete:
			if msg.ID == subscriptionID {
				c.logger.Debug("subscription completed by server", "operation", info.name)
				return nil
			}

		case gqlPing:
			if err := write(wsMessage{Type: gqlPong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}

		case gqlPong, gqlConnectionKeepAlive:
			continue

		default:
			continue
		}
	}
}
