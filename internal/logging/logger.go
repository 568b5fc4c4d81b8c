// Package logging defines a minimal structured-logging interface used across
// the project. Implementations wrap slog or zerolog.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "draft queued", "id", id, "mode", mode)
type Logger interface {
	// Debug logs verbose diagnostics.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported output formats for New.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatZerolog = "zerolog"
)

// New builds a Logger writing to w. Format selects the backend: "text" and
// "json" use slog handlers, "zerolog" uses a zerolog JSON writer.
func New(level, format string, w io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case "", FormatText, FormatJSON:
		l, err := newSlogWriter(w, orDefault(level, "info"), strings.EqualFold(format, FormatJSON))
		if err != nil {
			return nil, err
		}
		return l, nil
	case FormatZerolog:
		l, err := NewZerologLogger(w, orDefault(level, "info"))
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
