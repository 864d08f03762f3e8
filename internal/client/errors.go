package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for data layer operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnauthenticated indicates the backend rejected the bearer token (missing, expired or invalid).
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrServer indicates a non-2xx HTTP response from the GraphQL endpoint.
	ErrServer = errors.New("server error")

	// ErrWrongTransport indicates a subscription sent over HTTP or a query/mutation sent over the socket.
	ErrWrongTransport = errors.New("operation not supported on this transport")

	// ErrNotFound indicates the targeted row does not exist (or is not visible to the user).
	ErrNotFound = errors.New("not found")
)

// Hasura error codes that mean the token was not accepted.
var authErrorCodes = map[string]bool{
	"invalid-jwt":     true,
	"invalid-headers": true,
	"access-denied":   true,
}

// GraphQLError is a single error entry reported by the GraphQL engine.
type GraphQLError struct {
	Message string
	Code    string // extensions.code, e.g. "validation-failed"
	Path    string // extensions.path
}

func (e *GraphQLError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graphql error (%s): %s", e.Code, e.Message)
	}
	return "graphql error: " + e.Message
}

// Unwrap lets errors.Is(err, ErrUnauthenticated) match token rejections.
func (e *GraphQLError) Unwrap() error {
	if authErrorCodes[e.Code] {
		return ErrUnauthenticated
	}
	return nil
}

// graphQLError is the wire shape of an error entry.
type graphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
		Path string `json:"path,omitempty"`
	} `json:"extensions"`
}

func toGraphQLError(e graphQLError) *GraphQLError {
	return &GraphQLError{
		Message: e.Message,
		Code:    e.Extensions.Code,
		Path:    e.Extensions.Path,
	}
}
