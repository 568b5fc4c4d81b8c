package services

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// MetaStore is the key/value part of the local store.
type MetaStore interface {
	Meta(ctx context.Context, key string) ([]byte, error)
	SetMeta(ctx context.Context, key string, value []byte) error
	DeleteMeta(ctx context.Context, key string) error
}

// AuthService keeps the bearer token used for story API calls.
type AuthService struct {
	store MetaStore
	log   logging.Logger
	now   func() time.Time
}

func NewAuthService(store MetaStore, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Discard()
	}
	return &AuthService{store: store, log: log.With("component", "auth"), now: time.Now}
}

func (a *AuthService) SaveToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	a.warnIfExpired(ctx, token)
	return a.store.SetMeta(ctx, metadata.KeyAuthToken, []byte(token))
}

// Token returns the stored token, or "" when logged out. Expired tokens are
// still returned; the API decides.
func (a *AuthService) Token(ctx context.Context) (string, error) {
	b, err := a.store.Meta(ctx, metadata.KeyAuthToken)
	if err != nil {
		return "", err
	}
	token := string(b)
	if token != "" {
		a.warnIfExpired(ctx, token)
	}
	return token, nil
}

func (a *AuthService) LoggedIn(ctx context.Context) bool {
	t, err := a.Token(ctx)
	return err == nil && t != ""
}

func (a *AuthService) Logout(ctx context.Context) error {
	return a.store.DeleteMeta(ctx, metadata.KeyAuthToken)
}

// ExpiresAt reads the exp claim without verifying the signature. ok is false
// for opaque tokens or tokens without exp.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (a *AuthService) warnIfExpired(ctx context.Context, token string) {
	if exp, ok := ExpiresAt(token); ok && a.now().After(exp) {
		a.log.Warn(ctx, "bearer token has expired", "expired_at", exp)
	}
}
