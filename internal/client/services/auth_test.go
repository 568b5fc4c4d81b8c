package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestAuthService_TokenLifecycle(t *testing.T) {
	a := NewAuthService(newTestStore(t), nil)
	ctx := context.Background()

	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.False(t, a.LoggedIn(ctx))

	require.ErrorIs(t, a.SaveToken(ctx, "  "), ErrEmptyToken)
	require.NoError(t, a.SaveToken(ctx, " opaque-token\n"))

	tok, err = a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok)
	assert.True(t, a.LoggedIn(ctx))

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.LoggedIn(ctx))
}

func TestAuthService_ExpiredTokenIsStillReturned(t *testing.T) {
	a := NewAuthService(newTestStore(t), nil)
	ctx := context.Background()
	expired := signed(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})

	require.NoError(t, a.SaveToken(ctx, expired))
	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, expired, tok)
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := ExpiresAt(signed(t, jwt.MapClaims{"exp": exp.Unix()}))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = ExpiresAt(signed(t, jwt.MapClaims{"sub": "x"}))
	assert.False(t, ok)

	_, ok = ExpiresAt("not-a-jwt")
	assert.False(t, ok)
}
