package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/storyqueue/internal/common"
	"github.com/dmitrijs2005/storyqueue/internal/devapi/auth"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"golang.org/x/time/rate"
)

type contextKey string

const identityKey contextKey = "identity"

type Identity struct {
	UserID string
	Name   string
}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func writeEnvelope(ctx huma.Context, status int, msg string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(status)
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(Envelope{Error: true, Message: msg})
}

// authMiddleware requires a valid bearer token.
func authMiddleware(secret []byte, log logging.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := common.BearerToken(ctx.Header(common.AuthorizationHeader))
		if token == "" {
			writeEnvelope(ctx, http.StatusUnauthorized, "Missing authentication")
			return
		}

		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			log.Info(ctx.Context(), "token rejected", "error", err)
			msg := "Invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "Token expired"
			}
			writeEnvelope(ctx, http.StatusUnauthorized, msg)
			return
		}

		next(huma.WithValue(ctx, identityKey, Identity{UserID: claims.UserID, Name: claims.Name}))
	}
}

// rateLimitMiddleware answers 429 once the shared token bucket is empty.
func rateLimitMiddleware(l *rate.Limiter) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !l.Allow() {
			writeEnvelope(ctx, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(ctx)
	}
}

func loggerMiddleware(log logging.Logger) func(huma.Context, func(huma.Context)) {
	log = log.With("component", "http_logger")
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		method := ctx.Method()
		path := ctx.URL().Path
		remoteAddr := ctx.RemoteAddr()

		next(ctx)

		log.Info(ctx.Context(), "HTTP request",
			"method", method,
			"path", path,
			"status", ctx.Status(),
			"duration", time.Since(start),
			"remote_addr", remoteAddr,
		)
	}
}
