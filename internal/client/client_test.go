package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/chatbot-go/internal/client"
	"github.com/raphaelgruber/chatbot-go/internal/hasuratest"
	"github.com/raphaelgruber/chatbot-go/internal/metrics"
	"github.com/raphaelgruber/chatbot-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*client.Client, *hasuratest.Server, string) {
	t.Helper()
	srv := hasuratest.NewServer(t)
	userID := srv.AddUser("ada@example.com", "secret")
	token := hasuratest.MintToken(userID, time.Hour)
	c := client.New(srv.GraphQLURL(), client.WithTokenSource(client.StaticToken(token)))
	return c, srv, userID
}

func TestExecuteSendsBearerToken(t *testing.T) {
	c, srv, userID := newTestClient(t)

	_, err := c.ListChats(context.Background(), userID)
	require.NoError(t, err)

	assert.Contains(t, srv.LastAuthorization(), "Bearer ")
	assert.Equal(t, 1, srv.Calls("chats"))
}

func TestExecuteOmitsAuthorizationWithoutToken(t *testing.T) {
	srv := hasuratest.NewServer(t)
	c := client.New(srv.GraphQLURL())

	_, err := c.ListChats(context.Background(), "someone")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
	assert.Empty(t, srv.LastAuthorization())
}

func TestExecuteInvalidToken(t *testing.T) {
	srv := hasuratest.NewServer(t)
	c := client.New(srv.GraphQLURL(), client.WithTokenSource(client.StaticToken("not-a-jwt")))

	_, err := c.ListChats(context.Background(), "someone")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnauthenticated)

	var gqlErr *client.GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Equal(t, "invalid-jwt", gqlErr.Code)
}

func TestTokenSourceError(t *testing.T) {
	srv := hasuratest.NewServer(t)
	boom := errors.New("no session")
	c := client.New(srv.GraphQLURL(), client.WithTokenSource(client.TokenFunc(func(context.Context) (string, error) {
		return "", boom
	})))

	_, err := c.ListChats(context.Background(), "someone")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, srv.TotalGraphQLCalls())
}

func TestTokenIsReadPerCall(t *testing.T) {
	srv := hasuratest.NewServer(t)
	userID := srv.AddUser("ada@example.com", "secret")

	var mu sync.Mutex
	token := ""
	c := client.New(srv.GraphQLURL(), client.WithTokenSource(client.TokenFunc(func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		return token, nil
	})))

	_, err := c.ListChats(context.Background(), userID)
	require.ErrorIs(t, err, client.ErrUnauthenticated)

	mu.Lock()
	token = hasuratest.MintToken(userID, time.Hour)
	mu.Unlock()

	_, err = c.ListChats(context.Background(), userID)
	require.NoError(t, err)
}

func TestStaticHeaders(t *testing.T) {
	srv := hasuratest.NewServer(t)
	userID := srv.AddUser("ada@example.com", "secret")
	c := client.New(srv.GraphQLURL(),
		client.WithHeader("Authorization", "Bearer "+hasuratest.MintToken(userID, time.Hour)))

	_, err := c.ListChats(context.Background(), userID)
	require.NoError(t, err)
}

func TestExecuteRejectsSubscription(t *testing.T) {
	c, srv, _ := newTestClient(t)

	err := c.Execute(context.Background(), `subscription S { chats { id } }`, nil, nil)
	assert.ErrorIs(t, err, client.ErrWrongTransport)
	assert.Equal(t, 0, srv.TotalGraphQLCalls())
}

func TestSubscribeRejectsQuery(t *testing.T) {
	c, _, _ := newTestClient(t)

	err := c.Subscribe(context.Background(), `query Q { chats { id } }`, nil, func(json.RawMessage) error { return nil })
	assert.ErrorIs(t, err, client.ErrWrongTransport)
}

func TestExecuteParseError(t *testing.T) {
	c, _, _ := newTestClient(t)

	err := c.Execute(context.Background(), `query {`, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse operation")
}

func TestChatLifecycle(t *testing.T) {
	c, srv, userID := newTestClient(t)
	ctx := context.Background()

	chat, err := c.CreateChat(ctx, "New Chat", userID)
	require.NoError(t, err)
	require.NotEmpty(t, chat.ID)
	assert.Equal(t, "New Chat", chat.Title)

	renamed, err := c.UpdateChatTitle(ctx, chat.ID, "Trip planning")
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", renamed.Title)

	chats, err := c.ListChats(ctx, userID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Trip planning", chats[0].Title)

	require.NoError(t, c.DeleteChat(ctx, chat.ID))
	assert.Empty(t, srv.Chats(userID))

	err = c.DeleteChat(ctx, chat.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = c.UpdateChatTitle(ctx, chat.ID, "gone")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestChatsCarryLatestPreview(t *testing.T) {
	c, srv, userID := newTestClient(t)
	older := srv.SeedChat(userID, "older")
	newer := srv.SeedChat(userID, "newer")
	srv.SeedMessage(older.ID, models.RoleUser, "first", userID)
	srv.SeedMessage(older.ID, models.RoleAssistant, "latest", userID)

	chats, err := c.ListChats(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	// older got new messages so it is now the most recently updated
	assert.Equal(t, older.ID, chats[0].ID)
	require.NotNil(t, chats[0].Preview())
	assert.Equal(t, "latest", chats[0].Preview().Content)
	assert.Equal(t, newer.ID, chats[1].ID)
	assert.Nil(t, chats[1].Preview())
}

func TestMessages(t *testing.T) {
	c, _, userID := newTestClient(t)
	ctx := context.Background()

	chat, err := c.CreateChat(ctx, "New Chat", userID)
	require.NoError(t, err)

	msg, err := c.InsertMessage(ctx, client.NewMessage{ChatID: chat.ID, Content: "hello", Role: models.RoleUser, UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, chat.ID, msg.ChatID)
	assert.Equal(t, models.RoleUser, msg.Role)

	_, err = c.InsertMessage(ctx, client.NewMessage{ChatID: chat.ID, Content: "hi", Role: models.RoleAssistant, UserID: userID})
	require.NoError(t, err)

	msgs, err := c.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)
	for _, m := range msgs {
		assert.Equal(t, chat.ID, m.ChatID)
	}
}

func TestInsertMessageInvalidRole(t *testing.T) {
	c, srv, userID := newTestClient(t)

	_, err := c.InsertMessage(context.Background(), client.NewMessage{ChatID: "x", Content: "hi", Role: "system", UserID: userID})
	require.Error(t, err)
	assert.Equal(t, 0, srv.TotalGraphQLCalls())
}

func TestGraphQLErrorIsReturned(t *testing.T) {
	c, srv, userID := newTestClient(t)
	srv.FailNext("insert_chats_one", "database unavailable")

	_, err := c.CreateChat(context.Background(), "New Chat", userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.NotErrorIs(t, err, client.ErrUnauthenticated)
}

func TestSendMessage(t *testing.T) {
	mc := metrics.NewCollector()
	srv := hasuratest.NewServer(t)
	userID := srv.AddUser("ada@example.com", "secret")
	c := client.New(srv.GraphQLURL(),
		client.WithTokenSource(client.StaticToken(hasuratest.MintToken(userID, time.Hour))),
		client.WithMetrics(mc))
	chat := srv.SeedChat(userID, "New Chat")

	res, err := c.SendMessage(context.Background(), chat.ID, "ping")
	require.NoError(t, err)
	reply, ok := res.Reply()
	require.True(t, ok)
	assert.Equal(t, "echo: ping", reply)

	snap := mc.Snapshot()
	require.NotNil(t, snap.AIAction)
	assert.Equal(t, int64(1), snap.AIAction.Count)
	require.NotNil(t, snap.Mutation)
	assert.Equal(t, int64(1), snap.Mutation.Count)
}

func TestSendMessageFailureEnvelope(t *testing.T) {
	c, srv, userID := newTestClient(t)
	chat := srv.SeedChat(userID, "New Chat")
	srv.SetAIHandler(func(string, string) models.SendMessageResult {
		msg := "model overloaded"
		return models.SendMessageResult{Success: false, Error: &msg}
	})

	res, err := c.SendMessage(context.Background(), chat.ID, "ping")
	require.NoError(t, err)
	_, ok := res.Reply()
	assert.False(t, ok)
	failure, ok := res.Failure()
	require.True(t, ok)
	assert.Equal(t, "model overloaded", failure)
}

func TestSubscribeMessagesPushesSnapshots(t *testing.T) {
	c, srv, userID := newTestClient(t)
	chat := srv.SeedChat(userID, "New Chat")
	srv.SeedMessage(chat.ID, models.RoleUser, "one", userID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshots := make(chan []models.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeMessages(ctx, chat.ID, func(msgs []models.Message) { snapshots <- msgs })
	}()

	first := <-snapshots
	require.Len(t, first, 1)
	assert.Equal(t, "one", first[0].Content)
	assert.Equal(t, chat.ID, first[0].ChatID)

	_, err := c.InsertMessage(ctx, client.NewMessage{ChatID: chat.ID, Content: "two", Role: models.RoleUser, UserID: userID})
	require.NoError(t, err)

	second := <-snapshots
	require.Len(t, second, 2)
	assert.Equal(t, "two", second[1].Content)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Eventually(t, func() bool { return srv.ActiveSubscriptions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeChats(t *testing.T) {
	c, srv, userID := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshots := make(chan []models.Chat, 8)
	go func() {
		_ = c.SubscribeChats(ctx, userID, func(chats []models.Chat) { snapshots <- chats })
	}()

	assert.Empty(t, <-snapshots)

	srv.SeedChat(userID, "pushed")
	chats := <-snapshots
	require.Len(t, chats, 1)
	assert.Equal(t, "pushed", chats[0].Title)
}

func TestSubscribeServerComplete(t *testing.T) {
	c, srv, userID := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeChats(ctx, userID, func([]models.Chat) {
			select {
			case started <- struct{}{}:
			default:
			}
		})
	}()

	<-started
	srv.PingAll()
	srv.CompleteSubscriptions()
	assert.NoError(t, <-done)
}

func TestSubscribeInvalidToken(t *testing.T) {
	srv := hasuratest.NewServer(t)
	c := client.New(srv.GraphQLURL(), client.WithTokenSource(client.StaticToken("not-a-jwt")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.SubscribeChats(ctx, "someone", func([]models.Chat) {})
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
}

func TestSubscribeCallbackError(t *testing.T) {
	c, _, userID := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := errors.New("stop")
	err := c.Subscribe(ctx, `subscription ChatsSubscription($user_id: uuid!) { chats { id } }`,
		map[string]any{"user_id": userID},
		func(json.RawMessage) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSubscribeCancelWhileAwaitingAck(t *testing.T) {
	inited := make(chan struct{})
	upgrader := websocket.Upgrader{Subprotocols: []string{client.Subprotocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// read connection_init, never ack, and wait for the client to hang up
		if _, _, err := conn.ReadMessage(); err == nil {
			close(inited)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithTokenSource(client.StaticToken("token")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeChats(ctx, "u1", func([]models.Chat) {})
	}()

	<-inited
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}
