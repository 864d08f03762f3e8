package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsDeriveEndpoints(t *testing.T) {
	t.Setenv("NHOST_SUBDOMAIN", "")
	t.Setenv("NHOST_REGION", "")
	t.Setenv("CHATBOT_GRAPHQL_URL", "")
	t.Setenv("CHATBOT_GRAPHQL_WS_URL", "")
	t.Setenv("CHATBOT_AUTH_URL", "")
	t.Setenv("CHATBOT_CLIENT_TIMEOUT", "")

	cfg := fromSources(FileConfig{})

	assert.Equal(t, "https://thunpfudsbublhllnhrt.hasura.ap-south-1.nhost.run/v1/graphql", cfg.GraphQLURL)
	assert.Equal(t, "wss://thunpfudsbublhllnhrt.hasura.ap-south-1.nhost.run/v1/graphql", cfg.GraphQLWSURL)
	assert.Equal(t, "https://thunpfudsbublhllnhrt.auth.ap-south-1.nhost.run/v1", cfg.AuthURL)
	assert.Equal(t, DefaultClientTimeout, cfg.ClientTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("NHOST_SUBDOMAIN", "fromenv")
	t.Setenv("NHOST_REGION", "")
	t.Setenv("CHATBOT_GRAPHQL_URL", "")
	t.Setenv("CHATBOT_GRAPHQL_WS_URL", "")
	t.Setenv("CHATBOT_AUTH_URL", "")
	t.Setenv("CHATBOT_LOG_LEVEL", "")
	t.Setenv("CHATBOT_CLIENT_TIMEOUT", "")

	cfg := fromSources(FileConfig{
		Subdomain:     "fromfile",
		Region:        "eu-central-1",
		LogLevel:      "debug",
		ClientTimeout: "5s",
	})

	assert.Equal(t, "fromenv", cfg.NhostSubdomain)
	assert.Equal(t, "eu-central-1", cfg.NhostRegion)
	assert.Equal(t, "https://fromenv.hasura.eu-central-1.nhost.run/v1/graphql", cfg.GraphQLURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ClientTimeout)
}

func TestExplicitURLs(t *testing.T) {
	t.Setenv("CHATBOT_GRAPHQL_URL", "http://localhost:8080/v1/graphql")
	t.Setenv("CHATBOT_GRAPHQL_WS_URL", "")
	t.Setenv("CHATBOT_AUTH_URL", "http://localhost:4000/v1")

	cfg := fromSources(FileConfig{})

	assert.Equal(t, "ws://localhost:8080/v1/graphql", cfg.GraphQLWSURL)
	assert.Equal(t, "http://localhost:4000/v1", cfg.AuthURL)
}

func TestLoadFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		fc, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, FileConfig{}, fc)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("subdomain: abc\nregion: us-east-1\nemail: me@example.com\n"), 0o600))

		fc, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "abc", fc.Subdomain)
		assert.Equal(t, "us-east-1", fc.Region)
		assert.Equal(t, "me@example.com", fc.Email)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("subdomain: [unterminated"), 0o600))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "wss://x/v1/graphql", WebSocketURL("https://x/v1/graphql"))
	assert.Equal(t, "ws://x/v1/graphql", WebSocketURL("http://x/v1/graphql"))
	assert.Equal(t, "ws://already", WebSocketURL("ws://already"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("chat selected", "chat_id", "c1")

	assert.Contains(t, stderr.String(), "chat selected")
	assert.NotContains(t, stderr.String(), "hidden")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(file.String()), "{"), "file sink should be JSON")
	assert.Contains(t, file.String(), `"chat_id":"c1"`)
}

func TestSetupFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot.log")
	logger, cleanup := SetupFileLogger(path, slog.LevelInfo)
	logger.Info("signed in", "user_id", "u1")
	logger.Debug("hidden")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_id":"u1"`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "one record, written once")
}
