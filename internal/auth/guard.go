// Package auth resolves credentials and bearer tokens to users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spese-api/internal/core"
)

// UserStore is the credential store the guard reads and writes.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPassword string, createdAt time.Time) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
}

// Token is what a successful login hands back to the client.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Guard struct {
	users  UserStore
	tokens *TokenIssuer
	hasher Hasher
	now    func() time.Time
}

func NewGuard(users UserStore, tokens *TokenIssuer, hasher Hasher) *Guard {
	return &Guard{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register creates a user. A taken username is a ConflictError.
func (g *Guard) Register(ctx context.Context, creds core.Credentials) (core.User, error) {
	if err := creds.Validate(); err != nil {
		return core.User{}, err
	}
	username := strings.TrimSpace(creds.Username)

	_, err := g.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return core.User{}, &core.ConflictError{Resource: "user", Err: core.ErrUsernameRegistered}
	case !core.IsNotFound(err):
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := g.hasher.Hash(creds.Password)
	if err != nil {
		return core.User{}, err
	}

	user, err := g.users.CreateUser(ctx, username, hash, g.now())
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (g *Guard) Login(ctx context.Context, creds core.Credentials) (Token, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return Token{}, &core.AuthError{Cause: core.ErrBadCredentials}
	}

	user, err := g.users.GetUserByUsername(ctx, username)
	if err != nil {
		if core.IsNotFound(err) {
			return Token{}, &core.AuthError{Cause: core.ErrBadCredentials}
		}
		return Token{}, fmt.Errorf("lookup user: %w", err)
	}
	if !g.hasher.Matches(user.PasswordHash, creds.Password) {
		slog.WarnContext(ctx, "Login failed", "username", username)
		return Token{}, &core.AuthError{Cause: core.ErrBadCredentials}
	}

	signed, expiresAt, err := g.tokens.Issue(user.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a raw bearer token to a live user.
func (g *Guard) Authenticate(ctx context.Context, rawToken string) (core.User, error) {
	username, err := g.tokens.Verify(rawToken)
	if err != nil {
		return core.User{}, err
	}

	user, err := g.users.GetUserByUsername(ctx, username)
	if err != nil {
		if core.IsNotFound(err) {
			return core.User{}, &core.AuthError{Cause: core.ErrUnknownUser}
		}
		return core.User{}, fmt.Errorf("resolve token subject: %w", err)
	}
	return user, nil
}

// BearerToken extracts the token from an Authorization header value.
// Anything other than "Bearer <token>" yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IsMissingToken reports whether err is an AuthError caused by no token at all.
func IsMissingToken(err error) bool {
	var ae *core.AuthError
	return errors.As(err, &ae) && errors.Is(ae.Cause, core.ErrMissingToken)
}
