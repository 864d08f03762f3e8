package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raphaelgruber/chatbot-go/internal/metrics"
	"github.com/raphaelgruber/chatbot-go/internal/models"
)

// =============================================================================
// DOCUMENTS (matching the Hasura schema)
// =============================================================================

const chatFields = `
	id
	title
	created_at
	updated_at
	messages(order_by: { created_at: desc }, limit: 1) {
		content
		created_at
	}
`

const messageFields = `
	id
	content
	role
	created_at
	user_id
`

const (
	listChatsQuery = `
		query GetChats($user_id: uuid!) {
			chats(where: { user_id: { _eq: $user_id } }, order_by: { updated_at: desc }) {` + chatFields + `}
		}
	`

	listMessagesQuery = `
		query GetMessages($chat_id: uuid!) {
			messages(where: { chat_id: { _eq: $chat_id } }, order_by: { created_at: asc }) {` + messageFields + `}
		}
	`

	createChatMutation = `
		mutation CreateChat($title: String!, $user_id: uuid!) {
			insert_chats_one(object: { title: $title, user_id: $user_id }) {
				id
				title
				created_at
				updated_at
			}
		}
	`

	deleteChatMutation = `
		mutation DeleteChat($id: uuid!) {
			delete_chats_by_pk(id: $id) {
				id
			}
		}
	`

	updateChatTitleMutation = `
		mutation UpdateChatTitle($id: uuid!, $title: String!) {
			update_chats_by_pk(pk_columns: { id: $id }, _set: { title: $title }) {
				id
				title
				updated_at
			}
		}
	`

	insertMessageMutation = `
		mutation InsertMessage($chat_id: uuid!, $content: String!, $role: String!, $user_id: uuid!) {
			insert_messages_one(object: { chat_id: $chat_id, content: $content, role: $role, user_id: $user_id }) {` + messageFields + `}
		}
	`

	sendMessageAction = `
		mutation SendMessage($chat_id: uuid!, $content: String!) {
			sendMessage(chat_id: $chat_id, content: $content) {
				message_id
				content
				success
				error
			}
		}
	`

	messagesSubscription = `
		subscription MessagesSubscription($chat_id: uuid!) {
			messages(where: { chat_id: { _eq: $chat_id } }, order_by: { created_at: asc }) {` + messageFields + `}
		}
	`

	chatsSubscription = `
		subscription ChatsSubscription($user_id: uuid!) {
			chats(where: { user_id: { _eq: $user_id } }, order_by: { updated_at: desc }) {` + chatFields + `}
		}
	`
)

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ListChats returns the user's chats, most recently updated first.
func (c *Client) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var result struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.Execute(ctx, listChatsQuery, map[string]any{"user_id": userID}, &result); err != nil {
		return nil, err
	}
	return result.Chats, nil
}

// CreateChat creates a chat owned by userID.
func (c *Client) CreateChat(ctx context.Context, title, userID string) (*models.Chat, error) {
	var result struct {
		InsertChatsOne *models.Chat `json:"insert_chats_one"`
	}
	vars := map[string]any{"title": title, "user_id": userID}
	if err := c.Execute(ctx, createChatMutation, vars, &result); err != nil {
		return nil, err
	}
	if result.InsertChatsOne == nil {
		return nil, fmt.Errorf("create chat: empty response")
	}
	return result.InsertChatsOne, nil
}

// DeleteChat deletes a chat by ID. Returns ErrNotFound when nothing was deleted.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	var result struct {
		DeleteChatsByPK *struct {
			ID string `json:"id"`
		} `json:"delete_chats_by_pk"`
	}
	if err := c.Execute(ctx, deleteChatMutation, map[string]any{"id": id}, &result); err != nil {
		return err
	}
	if result.DeleteChatsByPK == nil {
		return fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateChatTitle renames a chat.
func (c *Client) UpdateChatTitle(ctx context.Context, id, title string) (*models.Chat, error) {
	var result struct {
		UpdateChatsByPK *models.Chat `json:"update_chats_by_pk"`
	}
	if err := c.Execute(ctx, updateChatTitleMutation, map[string]any{"id": id, "title": title}, &result); err != nil {
		return nil, err
	}
	if result.UpdateChatsByPK == nil {
		return nil, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return result.UpdateChatsByPK, nil
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// ListMessages returns all messages of a chat in creation order.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var result struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.Execute(ctx, listMessagesQuery, map[string]any{"chat_id": chatID}, &result); err != nil {
		return nil, err
	}
	return withChatID(result.Messages, chatID), nil
}

// NewMessage is the input for InsertMessage.
type NewMessage struct {
	ChatID  string
	Content string
	Role    models.Role
	UserID  string
}

// InsertMessage persists a message.
func (c *Client) InsertMessage(ctx context.Context, in NewMessage) (*models.Message, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("insert message: invalid role %q", in.Role)
	}

	var result struct {
		InsertMessagesOne *models.Message `json:"insert_messages_one"`
	}
	vars := map[string]any{
		"chat_id": in.ChatID,
		"content": in.Content,
		"role":    string(in.Role),
		"user_id": in.UserID,
	}
	if err := c.Execute(ctx, insertMessageMutation, vars, &result); err != nil {
		return nil, err
	}
	if result.InsertMessagesOne == nil {
		return nil, fmt.Errorf("insert message: empty response")
	}
	msg := result.InsertMessagesOne
	msg.ChatID = in.ChatID
	return msg, nil
}

// SendMessage invokes the AI action for a chat and returns its reply envelope.
// A transport or GraphQL failure is returned as an error; an AI-side failure is
// reported in the result's Error field.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) (result *models.SendMessageResult, err error) {
	start := time.Now()
	defer func() { c.metrics.Observe(metrics.OpAIAction, start, err) }()

	var resp struct {
		SendMessage *models.SendMessageResult `json:"sendMessage"`
	}
	vars := map[string]any{"chat_id": chatID, "content": content}
	if err := c.Execute(ctx, sendMessageAction, vars, &resp); err != nil {
		return nil, err
	}
	if resp.SendMessage == nil {
		return nil, fmt.Errorf("send message: empty response")
	}
	return resp.SendMessage, nil
}

// =============================================================================
// LIVE QUERIES
// =============================================================================

// SubscribeChats streams chat list snapshots for a user until ctx is cancelled.
func (c *Client) SubscribeChats(ctx context.Context, userID string, onSnapshot func([]models.Chat)) error {
	return c.Subscribe(ctx, chatsSubscription, map[string]any{"user_id": userID}, func(data json.RawMessage) error {
		var result struct {
			Chats []models.Chat `json:"chats"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("unmarshal chats: %w", err)
		}
		onSnapshot(result.Chats)
		return nil
	})
}

// SubscribeMessages streams message list snapshots for a chat until ctx is cancelled.
func (c *Client) SubscribeMessages(ctx context.Context, chatID string, onSnapshot func([]models.Message)) error {
	return c.Subscribe(ctx, messagesSubscription, map[string]any{"chat_id": chatID}, func(data json.RawMessage) error {
		var result struct {
			Messages []models.Message `json:"messages"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("unmarshal messages: %w", err)
		}
		onSnapshot(withChatID(result.Messages, chatID))
		return nil
	})
}

func withChatID(msgs []models.Message, chatID string) []models.Message {
	for i := range msgs {
		msgs[i].ChatID = chatID
	}
	return msgs
}
