package logging

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

var _ Logger = (*ZerologLogger)(nil)

type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger creates a zerolog-backed Logger with timestamps.
func NewZerologLogger(w io.Writer, level string) (*ZerologLogger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return &ZerologLogger{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.l.Debug().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.l.Info().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.l.Warn().Fields(args).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.l.Error().Fields(args).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(args).Logger()}
}
