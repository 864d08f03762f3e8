// Package config loads client configuration from the environment, an optional .env file and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the hosted backend the client was built against.
const (
	DefaultSubdomain     = "thunpfudsbublhllnhrt"
	DefaultRegion        = "ap-south-1"
	DefaultClientTimeout = 30 * time.Second
)

// Config holds all configuration values.
type Config struct {
	// Nhost project
	NhostSubdomain string
	NhostRegion    string

	// Endpoints (derived from subdomain/region unless overridden)
	GraphQLURL   string
	GraphQLWSURL string
	AuthURL      string

	// AdminSecret is sent as x-hasura-admin-secret when set. Only meant for local testing.
	AdminSecret string

	ClientTimeout time.Duration

	// Credentials used by non-interactive commands
	Email    string
	Password string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// FileConfig is the on-disk YAML representation. Empty fields fall through to defaults.
type FileConfig struct {
	Subdomain     string `yaml:"subdomain"`
	Region        string `yaml:"region"`
	GraphQLURL    string `yaml:"graphql_url"`
	AuthURL       string `yaml:"auth_url"`
	ClientTimeout string `yaml:"client_timeout"`
	Email         string `yaml:"email"`
	LogFile       string `yaml:"log_file"`
	LogLevel      string `yaml:"log_level"`
}

// Load reads configuration. Precedence: environment, then .env, then the YAML file, then defaults.
func Load() Config {
	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	file, err := LoadFile(configPath())
	if err != nil {
		slog.Warn("failed to read config file, using defaults", "error", err)
	}

	return fromSources(file)
}

// LoadFile parses a YAML config file. A missing file yields an empty FileConfig.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func fromSources(fc FileConfig) Config {
	subdomain := getEnv("NHOST_SUBDOMAIN", or(fc.Subdomain, DefaultSubdomain))
	region := getEnv("NHOST_REGION", or(fc.Region, DefaultRegion))

	graphqlURL := getEnv("CHATBOT_GRAPHQL_URL",
		or(fc.GraphQLURL, fmt.Sprintf("https://%s.hasura.%s.nhost.run/v1/graphql", subdomain, region)))
	authURL := getEnv("CHATBOT_AUTH_URL",
		or(fc.AuthURL, fmt.Sprintf("https://%s.auth.%s.nhost.run/v1", subdomain, region)))

	timeout := DefaultClientTimeout
	if t := getEnv("CHATBOT_CLIENT_TIMEOUT", fc.ClientTimeout); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return Config{
		NhostSubdomain: subdomain,
		NhostRegion:    region,
		GraphQLURL:     graphqlURL,
		GraphQLWSURL:   getEnv("CHATBOT_GRAPHQL_WS_URL", WebSocketURL(graphqlURL)),
		AuthURL:        authURL,
		AdminSecret:    getEnv("CHATBOT_ADMIN_SECRET", ""),
		ClientTimeout:  timeout,
		Email:          getEnv("CHATBOT_EMAIL", fc.Email),
		Password:       getEnv("CHATBOT_PASSWORD", ""),
		LogFile:        getEnv("CHATBOT_LOG_FILE", or(fc.LogFile, "/tmp/chatbot.log")),
		LogLevel:       parseLogLevel(getEnv("CHATBOT_LOG_LEVEL", or(fc.LogLevel, "INFO"))),
	}
}

// WebSocketURL converts an http(s) GraphQL endpoint into its ws(s) counterpart.
func WebSocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}

func configPath() string {
	if p := os.Getenv("CHATBOT_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatbot", "config.yaml")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func or(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
