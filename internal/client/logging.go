package client

import (
	"encoding/json"
	"log/slog"
	"time"
)

// maxVarLogLen is the maximum length for logged variables before truncation.
const maxVarLogLen = 200

// slowOperationThreshold is the duration above which operations are logged at WARN level.
const slowOperationThreshold = 2 * time.Second

// logOperation logs a finished GraphQL operation with its timing.
// Slow operations are logged at WARN level, failures at ERROR.
func logOperation(logger *slog.Logger, name string, kind opKind, vars map[string]any, duration time.Duration, err error) {
	attrs := []any{
		"operation", name,
		"kind", string(kind),
		"duration_ms", duration.Milliseconds(),
	}

	if params := formatVars(vars); params != "" {
		attrs = append(attrs, "variables", truncate(params, maxVarLogLen))
	}

	switch {
	case err != nil:
		attrs = append(attrs, "error", err.Error())
		logger.Error("graphql operation failed", attrs...)
	case duration > slowOperationThreshold:
		logger.Warn("slow graphql operation", attrs...)
	default:
		logger.Debug("graphql operation completed", attrs...)
	}
}

func formatVars(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return ""
	}
	return string(b)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
