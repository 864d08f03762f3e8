// Package client provides a GraphQL client for the Hasura data layer.
//
// Queries and mutations travel over HTTP; subscriptions travel over a graphql-transport-ws
// socket. Every call carries a bearer token obtained from a TokenSource.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/raphaelgruber/chatbot-go/internal/config"
	"github.com/raphaelgruber/chatbot-go/internal/metrics"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// TokenSource supplies the current access token. An empty token means anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Client is a GraphQL client for the Hasura data layer.
type Client struct {
	endpoint   string
	wsEndpoint string
	httpClient *http.Client
	tokens     TokenSource
	headers    map[string]string
	logger     *slog.Logger
	metrics    *metrics.Collector

	ops sync.Map // query string -> opInfo
}

// Option configures a Client.
type Option func(*Client)

// WithWebSocketEndpoint overrides the socket endpoint derived from the HTTP endpoint.
func WithWebSocketEndpoint(endpoint string) Option {
	return func(c *Client) { c.wsEndpoint = endpoint }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHeader adds a static header to every request and to the socket connection payload.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithTimeout sets the HTTP timeout for queries and mutations.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger for operation logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records operation timings into mc.
func WithMetrics(mc *metrics.Collector) Option {
	return func(c *Client) { c.metrics = mc }
}

// New creates a new GraphQL client for endpoint (an http or https URL).
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		wsEndpoint: config.WebSocketURL(endpoint),
		httpClient: &http.Client{Timeout: config.DefaultClientTimeout},
		tokens:     StaticToken(""),
		headers:    map[string]string{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// opKind is the GraphQL operation type of a document.
type opKind string

const (
	kindQuery        opKind = opKind(ast.Query)
	kindMutation     opKind = opKind(ast.Mutation)
	kindSubscription opKind = opKind(ast.Subscription)
)

type opInfo struct {
	kind opKind
	name string
}

// operation parses query once and caches its kind and name.
func (c *Client) operation(query string) (opInfo, error) {
	if v, ok := c.ops.Load(query); ok {
		return v.(opInfo), nil
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return opInfo{}, fmt.Errorf("parse operation: %w", err)
	}
	if len(doc.Operations) != 1 {
		return opInfo{}, fmt.Errorf("parse operation: expected exactly one operation, got %d", len(doc.Operations))
	}

	op := doc.Operations[0]
	info := opInfo{kind: opKind(op.Operation), name: op.Name}
	if info.name == "" {
		info.name = "anonymous"
	}
	c.ops.Store(query, info)
	return info, nil
}

// graphQLRequest is the request payload for GraphQL operations.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the response payload from GraphQL operations.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// authHeaders returns the headers every call carries: static headers plus the bearer token.
func (c *Client) authHeaders(ctx context.Context) (map[string]string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return headers, nil
}

// Execute sends a GraphQL query or mutation and decodes its data into result.
// Subscriptions are rejected; use Subscribe for those.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, result any) (err error) {
	info, err := c.operation(query)
	if err != nil {
		return err
	}
	if info.kind == kindSubscription {
		return fmt.Errorf("%s: %w", info.name, ErrWrongTransport)
	}

	start := time.Now()
	defer func() {
		op := metrics.OpQuery
		if info.kind == kindMutation {
			op = metrics.OpMutation
		}
		c.metrics.Observe(op, start, err)
		logOperation(c.logger, info.name, info.kind, variables, time.Since(start), err)
	}()

	return c.do(ctx, query, variables, result)
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, result any) error {
	reqBody, err := json.Marshal(graphQLRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthenticated, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s - %s", ErrServer, resp.Status, string(body))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return toGraphQLError(gqlResp.Errors[0])
	}

	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}
