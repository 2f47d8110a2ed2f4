package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spese-api/internal/core"
)

type memUsers struct {
	mu    sync.Mutex
	next  int64
	users map[string]core.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]core.User)}
}

func (m *memUsers) CreateUser(_ context.Context, username, hash string, createdAt time.Time) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return core.User{}, &core.ConflictError{Resource: "user", Err: core.ErrUsernameRegistered}
	}
	m.next++
	u := core.User{ID: m.next, Username: username, PasswordHash: hash, CreatedAt: createdAt}
	m.users[username] = u
	return u, nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return core.User{}, &core.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *memUsers) delete(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard(t *testing.T) (*Guard, *memUsers, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	users := newMemUsers()
	issuer := NewTokenIssuer("test-secret", 30*time.Minute).WithClock(clock.now)
	g := NewGuard(users, issuer, NewHasher(bcrypt.MinCost))
	g.now = clock.now
	return g, users, clock
}

func TestRegisterAndLogin(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	u, err := g.Register(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	tok, err := g.Login(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)

	resolved, err := g.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Register(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = g.Register(ctx, core.Credentials{Username: "alice", Password: "other"})
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
}

func TestRegisterValidation(t *testing.T) {
	g, _, _ := newTestGuard(t)
	_, err := g.Register(context.Background(), core.Credentials{Username: " ", Password: "x"})
	assert.True(t, core.IsValidation(err))
}

func TestLoginFailures(t *testing.T) {
	g, _, _ := newTestGuard(t)
	ctx := context.Background()
	_, err := g.Register(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	cases := []core.Credentials{
		{Username: "alice", Password: "wrong"},
		{Username: "nobody", Password: "secret1"},
		{Username: "", Password: ""},
	}
	for _, creds := range cases {
		_, err := g.Login(ctx, creds)
		require.Error(t, err, "%+v", creds)
		assert.True(t, core.IsAuth(err))
		assert.ErrorIs(t, err, core.ErrBadCredentials)
	}
}

func TestTokenExpiryWindow(t *testing.T) {
	g, _, clock := newTestGuard(t)
	ctx := context.Background()
	_, err := g.Register(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	tok, err := g.Login(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(30*time.Minute), tok.ExpiresAt)

	clock.advance(29 * time.Minute)
	_, err = g.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err, "token must be valid at T+29m")

	clock.advance(2 * time.Minute)
	_, err = g.Authenticate(ctx, tok.AccessToken)
	require.Error(t, err, "token must be rejected at T+31m")
	assert.True(t, core.IsAuth(err))
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthenticateDistinctCauses(t *testing.T) {
	g, users, _ := newTestGuard(t)
	ctx := context.Background()
	_, err := g.Register(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	tok, err := g.Login(ctx, core.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = g.Authenticate(ctx, "")
	assert.True(t, IsMissingToken(err))
	assert.ErrorIs(t, err, core.ErrMissingToken)

	_, err = g.Authenticate(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	assert.False(t, IsMissingToken(err))

	otherIssuer := NewTokenIssuer("another-secret", time.Hour)
	foreign, _, err := otherIssuer.Issue("alice")
	require.NoError(t, err)
	_, err = g.Authenticate(ctx, foreign)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	// Our header and payload with someone else's signature.
	ours := strings.Split(tok.AccessToken, ".")
	theirs := strings.Split(foreign, ".")
	_, err = g.Authenticate(ctx, ours[0]+"."+ours[1]+"."+theirs[2])
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	users.delete("alice")
	_, err = g.Authenticate(ctx, tok.AccessToken)
	assert.True(t, core.IsAuth(err))
	assert.ErrorIs(t, err, core.ErrUnknownUser)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(unsigned)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def.ghi": "abc.def.ghi",
		"bearer tok":         "tok",
		"Basic dXNlcg==":     "",
		"":                   "",
		"Bearer":             "",
	}
	for header, want := range cases {
		assert.Equal(t, want, BearerToken(header), "header %q", header)
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.True(t, h.Matches(hash, "secret1"))
	assert.False(t, h.Matches(hash, "secret2"))
	assert.False(t, h.Matches("garbage", "secret1"))

	// Out of range costs fall back to the default.
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(1).cost)
}
