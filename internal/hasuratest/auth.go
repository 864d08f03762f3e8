package hasuratest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTSecret signs the fake's access tokens (HS256).
var JWTSecret = []byte("hasuratest-secret-at-least-32-characters!")

// HasuraClaims is the namespaced claim set the engine reads.
type HasuraClaims struct {
	UserID       string   `json:"x-hasura-user-id"`
	DefaultRole  string   `json:"x-hasura-default-role"`
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
}

type accessClaims struct {
	Hasura HasuraClaims `json:"https://hasura.io/jwt/claims"`
	jwt.RegisteredClaims
}

// MintToken issues an access token for userID that expires after ttl.
func MintToken(userID string, ttl time.Duration) string {
	now := time.Now()
	claims := accessClaims{
		Hasura: HasuraClaims{UserID: userID, DefaultRole: "user", AllowedRoles: []string{"user", "me"}},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "hasura-auth",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(JWTSecret)
	if err != nil {
		panic(err)
	}
	return token
}

var errMissingToken = errors.New("missing authorization")

// verifyBearer returns the user id carried by an "Authorization: Bearer" value.
func verifyBearer(header string) (string, error) {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return "", errMissingToken
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return JWTSecret, nil
	})
	if err != nil {
		return "", err
	}
	return claims.Hasura.UserID, nil
}

type sessionUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type session struct {
	AccessToken          string      `json:"accessToken"`
	AccessTokenExpiresIn int         `json:"accessTokenExpiresIn"`
	RefreshToken         string      `json:"refreshToken"`
	User                 sessionUser `json:"user"`
}

func authError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"status": status, "error": code, "message": message})
}

// newSessionLocked rotates the refresh token and mints a fresh access token.
func (s *Server) newSessionLocked(u *user) session {
	u.refresh = uuid.NewString()
	return session{
		AccessToken:          MintToken(u.id, s.tokenTTL),
		AccessTokenExpiresIn: int(s.tokenTTL.Seconds()),
		RefreshToken:         u.refresh,
		User:                 sessionUser{ID: u.id, Email: u.email, DisplayName: strings.Split(u.email, "@")[0]},
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		authError(w, http.StatusBadRequest, "invalid-request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["auth:signin"]++

	u, ok := s.users[in.Email]
	if !ok || u.password != in.Password {
		authError(w, http.StatusUnauthorized, "invalid-email-password", "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s.newSessionLocked(u), "mfa": nil})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		authError(w, http.StatusBadRequest, "invalid-request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["auth:signup"]++

	if _, exists := s.users[in.Email]; exists {
		authError(w, http.StatusConflict, "email-already-in-use", "Email already in use")
		return
	}
	u := s.addUserLocked(in.Email, in.Password)
	writeJSON(w, http.StatusOK, map[string]any{"session": s.newSessionLocked(u)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		authError(w, http.StatusBadRequest, "invalid-request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["auth:token"]++

	for _, u := range s.users {
		if u.refresh != "" && u.refresh == in.RefreshToken {
			writeJSON(w, http.StatusOK, s.newSessionLocked(u))
			return
		}
	}
	authError(w, http.StatusUnauthorized, "invalid-refresh-token", "Invalid or expired refresh token")
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["auth:signout"]++

	for _, u := range s.users {
		if u.refresh == in.RefreshToken {
			u.refresh = ""
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
