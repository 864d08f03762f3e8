// Package auth is a client for the Nhost authentication service.
//
// It signs users in with email and password, keeps the session in memory, refreshes the
// access token shortly before it expires and broadcasts authentication status changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/raphaelgruber/chatbot-go/internal/metrics"
	"github.com/raphaelgruber/chatbot-go/internal/models"
)

// MissingCredentialsMessage is shown when the sign-in form is incomplete.
const MissingCredentialsMessage = "Please fill in all fields"

// refreshMargin is how long before expiry the access token is renewed.
const refreshMargin = 30 * time.Second

var (
	// ErrMissingCredentials indicates an empty email or password. No request is made.
	ErrMissingCredentials = errors.New("missing email or password")

	// ErrInvalidCredentials indicates the auth service rejected the email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrSessionExpired indicates the refresh token was rejected and the session was dropped.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotSignedIn indicates an operation that needs a session was called without one.
	ErrNotSignedIn = errors.New("not signed in")
)

// Status is the authentication state of the client.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusLoading
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// APIError is an error body returned by the auth service.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("auth error %d: %s", e.Status, e.Code)
}

// Session is the in-memory authenticated session.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         models.User
}

type sessionBody struct {
	AccessToken          string      `json:"accessToken"`
	AccessTokenExpiresIn int         `json:"accessTokenExpiresIn"`
	RefreshToken         string      `json:"refreshToken"`
	User                 models.User `json:"user"`
}

type signInResponse struct {
	Session *sessionBody `json:"session"`
}

// hasuraClaims is the namespaced claim set carried by the access token.
type hasuraClaims struct {
	UserID       string   `json:"x-hasura-user-id"`
	DefaultRole  string   `json:"x-hasura-default-role"`
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
}

type tokenClaims struct {
	Hasura hasuraClaims `json:"https://hasura.io/jwt/claims"`
	jwt.RegisteredClaims
}

// parseClaims decodes the access token without verifying its signature.
// Verification is the GraphQL engine's job; the client only needs the user id and expiry.
func parseClaims(raw string) (*tokenClaims, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return &claims, nil
}

// Client talks to the auth service and owns the session.
type Client struct {
	http    *resty.Client
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time

	refreshMu sync.Mutex // serializes token refreshes

	mu       sync.Mutex
	session  *Session
	status   Status
	watchers map[int]chan Status
	nextID   int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records auth call timings into mc.
func WithMetrics(mc *metrics.Collector) Option {
	return func(c *Client) { c.metrics = mc }
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// New creates an auth client for the service at baseURL (e.g. https://x.auth.region.nhost.run/v1).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
		logger:   slog.Default(),
		now:      time.Now,
		watchers: make(map[int]chan Status),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignIn authenticates with email and password and stores the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/signin/email-password", email, password)
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/signup/email-password", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (user *models.User, err error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	prev := c.Status()
	c.setStatus(StatusLoading)
	defer func() {
		if err != nil {
			c.setStatus(prev)
		}
	}()

	start := time.Now()
	defer func() { c.metrics.Observe(metrics.OpAuth, start, err) }()

	var out signInResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		SetError(&APIError{}).
		Post(path)
	if err != nil {
		c.logger.Error("auth request failed", "path", path, "error", err)
		return nil, fmt.Errorf("auth request: %w", err)
	}
	if res.IsError() {
		apiErr := responseError(res)
		c.logger.Warn("auth rejected", "path", path, "status", res.StatusCode(), "code", apiErr.Code)
		if res.StatusCode() == 401 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, apiErr)
		}
		return nil, apiErr
	}
	if out.Session == nil {
		// email verification pending or MFA required
		return nil, errors.New("sign-in did not return a session")
	}

	sess, err := c.toSession(out.Session)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.setStatus(StatusAuthenticated)

	c.logger.Info("signed in", "user_id", sess.User.ID)
	u := sess.User
	return &u, nil
}

func responseError(res *resty.Response) *APIError {
	if apiErr, ok := res.Error().(*APIError); ok && (apiErr.Message != "" || apiErr.Code != "") {
		if apiErr.Status == 0 {
			apiErr.Status = res.StatusCode()
		}
		return apiErr
	}
	return &APIError{Status: res.StatusCode(), Code: "unknown", Message: strings.TrimSpace(res.String())}
}

func (c *Client) toSession(body *sessionBody) (*Session, error) {
	claims, err := parseClaims(body.AccessToken)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		User:         body.User,
		ExpiresAt:    c.now().Add(time.Duration(body.AccessTokenExpiresIn) * time.Second),
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	if sess.User.ID == "" {
		sess.User.ID = claims.Hasura.UserID
	}
	return sess, nil
}

// SignOut revokes the refresh token and drops the session. The local session is cleared
// even when the request fails.
func (c *Client) SignOut(ctx context.Context) (err error) {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()
	c.setStatus(StatusUnauthenticated)

	if sess == nil {
		return nil
	}

	start := time.Now()
	defer func() { c.metrics.Observe(metrics.OpAuth, start, err) }()

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"refreshToken": sess.RefreshToken}).
		SetError(&APIError{}).
		Post("/signout")
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if res.IsError() {
		return responseError(res)
	}
	c.logger.Info("signed out", "user_id", sess.User.ID)
	return nil
}

// Refresh exchanges the refresh token for a new session. A rejected refresh token
// drops the session and returns ErrSessionExpired.
func (c *Client) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) (err error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return ErrNotSignedIn
	}

	start := time.Now()
	defer func() { c.metrics.Observe(metrics.OpAuth, start, err) }()

	var out sessionBody
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"refreshToken": sess.RefreshToken}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/token")
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	if res.IsError() {
		apiErr := responseError(res)
		if res.StatusCode() == 401 || res.StatusCode() == 403 {
			c.mu.Lock()
			c.session = nil
			c.mu.Unlock()
			c.setStatus(StatusUnauthenticated)
			c.logger.Warn("refresh token rejected, session dropped", "code", apiErr.Code)
			return fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
		}
		return apiErr
	}

	next, err := c.toSession(&out)
	if err != nil {
		return err
	}
	if next.User.ID == "" {
		next.User = sess.User
	}

	c.mu.Lock()
	c.session = next
	c.mu.Unlock()
	c.logger.Debug("access token refreshed", "expires_at", next.ExpiresAt)
	return nil
}

// Token returns a valid access token, refreshing it when it expires within 30 seconds.
// Without a session it returns an empty token, so requests go out unauthenticated.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return "", nil
	}
	if c.now().Add(refreshMargin).Before(sess.ExpiresAt) {
		return sess.AccessToken, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	c.mu.Lock()
	sess = c.session
	c.mu.Unlock()
	if sess == nil {
		return "", ErrSessionExpired
	}
	if c.now().Add(refreshMargin).Before(sess.ExpiresAt) {
		return sess.AccessToken, nil
	}

	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}
	return c.AccessToken(), nil
}

// AccessToken returns the current access token as is, or "" without a session.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// User returns the signed-in user, or nil.
func (c *Client) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	u := c.session.User
	return &u
}

// UserID returns the signed-in user's id, or "".
func (c *Client) UserID() string {
	if u := c.User(); u != nil {
		return u.ID
	}
	return ""
}

// Status returns the current authentication status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Watch returns a channel that receives every status transition, starting with the
// current status. Slow receivers only see the latest status. Call cancel to stop watching.
func (c *Client) Watch() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = ch
	ch <- c.status
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == s {
		return
	}
	c.status = s
	for _, ch := range c.watchers {
		// keep only the latest value for slow receivers
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
