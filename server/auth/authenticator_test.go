package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamamind/mindmap/store"
	teststore "github.com/llamamind/mindmap/store/test"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	user, err := ts.CreateUser(ctx, &store.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: store.RoleAdmin})
	require.NoError(t, err)

	authenticator := NewAuthenticator(ts, "secret")
	token, err := authenticator.GenerateAccessToken(user, time.Hour)
	require.NoError(t, err)

	userID, claims, err := authenticator.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)

	found, err := authenticator.AuthenticateToUser(ctx, "Bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	found, err = authenticator.AuthenticateToUser(ctx, "", "theme=dark; "+AccessTokenCookieName+"="+token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	user, err := ts.CreateUser(ctx, &store.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: store.RoleUser})
	require.NoError(t, err)
	authenticator := NewAuthenticator(ts, "secret")

	_, err = authenticator.AuthenticateToUser(ctx, "", "")
	assert.True(t, errors.Is(err, ErrMissingToken))

	expired, err := authenticator.GenerateAccessToken(user, -time.Minute)
	require.NoError(t, err)
	_, err = authenticator.AuthenticateToUser(ctx, "Bearer "+expired, "")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	foreign, err := NewAuthenticator(ts, "other").GenerateAccessToken(user, time.Hour)
	require.NoError(t, err)
	_, err = authenticator.AuthenticateToUser(ctx, "Bearer "+foreign, "")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: Issuer, Subject: "1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = authenticator.AuthenticateToUser(ctx, "Bearer "+unsigned, "")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	ghost := &store.User{ID: 999, Username: "ghost", Role: store.RoleUser}
	token, err := authenticator.GenerateAccessToken(ghost, time.Hour)
	require.NoError(t, err)
	_, err = authenticator.AuthenticateToUser(ctx, "Bearer "+token, "")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, ComparePassword(hash, "hunter22"))
	assert.False(t, ComparePassword(hash, "hunter23"))
	assert.False(t, ComparePassword("not-a-hash", "hunter22"))
}
