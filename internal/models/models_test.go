package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{"system", false},
		{"", false},
		{"User", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Valid())
		})
	}
}

func TestContentLengthCountsRunes(t *testing.T) {
	assert.Equal(t, 5, ContentLength("héllo"))
	assert.Equal(t, MaxMessageLength, ContentLength(strings.Repeat("é", MaxMessageLength)))
}

func TestChatDecodesHasuraPayload(t *testing.T) {
	payload := `{
		"id": "c1",
		"title": "New Chat 3:04:05 PM",
		"created_at": "2025-01-02T10:00:00.123456+00:00",
		"updated_at": "2025-01-02T11:30:00+00:00",
		"messages": [{"content": "hello", "created_at": "2025-01-02T11:30:00+00:00"}]
	}`

	var chat Chat
	require.NoError(t, json.Unmarshal([]byte(payload), &chat))

	assert.Equal(t, "c1", chat.ID)
	require.NotNil(t, chat.Preview())
	assert.Equal(t, "hello", chat.Preview().Content)
	assert.Equal(t, 11, chat.LastActivity().Hour())
}

func TestChatPreviewEmpty(t *testing.T) {
	chat := Chat{ID: "c1", CreatedAt: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}

	assert.Nil(t, chat.Preview())
	assert.Equal(t, chat.CreatedAt, chat.LastActivity(), "zero updated_at falls back to created_at")
}

func TestSendMessageResult(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("success with content", func(t *testing.T) {
		r := SendMessageResult{Success: true, Content: str("hi there")}
		reply, ok := r.Reply()
		assert.True(t, ok)
		assert.Equal(t, "hi there", reply)
		_, failed := r.Failure()
		assert.False(t, failed)
	})

	t.Run("success without content", func(t *testing.T) {
		_, ok := SendMessageResult{Success: true}.Reply()
		assert.False(t, ok)
	})

	t.Run("explicit error", func(t *testing.T) {
		r := SendMessageResult{Success: false, Error: str("model overloaded")}
		_, ok := r.Reply()
		assert.False(t, ok)
		msg, failed := r.Failure()
		assert.True(t, failed)
		assert.Equal(t, "model overloaded", msg)
	})
}
