// Package models defines the chat data structures mirrored from the GraphQL schema.
package models

import (
	"time"
)

// Chat represents a conversation thread owned by a user.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages holds at most one element: the most recent message, for previews.
	Messages []MessagePreview `json:"messages,omitempty"`
}

// MessagePreview is the trimmed-down latest message attached to a chat listing.
type MessagePreview struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Preview returns the latest message preview, or nil when the chat has no messages.
func (c Chat) Preview() *MessagePreview {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[0]
}

// LastActivity returns the updated timestamp, falling back to creation time.
func (c Chat) LastActivity() time.Time {
	if c.UpdatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.UpdatedAt
}

// Message represents a single chat message within a conversation.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
}

// SendMessageResult is the payload returned by the AI action.
// Success implies Content is set; failure implies Error is set.
type SendMessageResult struct {
	MessageID *string `json:"message_id,omitempty"`
	Content   *string `json:"content,omitempty"`
	Success   bool    `json:"success"`
	Error     *string `json:"error,omitempty"`
}

// Reply returns the generated content when the action succeeded with content.
func (r SendMessageResult) Reply() (string, bool) {
	if !r.Success || r.Content == nil || *r.Content == "" {
		return "", false
	}
	return *r.Content, true
}

// Failure returns the explicit error message reported by the action, if any.
func (r SendMessageResult) Failure() (string, bool) {
	if r.Error == nil || *r.Error == "" {
		return "", false
	}
	return *r.Error, true
}
