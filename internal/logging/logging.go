// Package logging configures the zerolog logger used across ctxselect.
//
// The logger is carried in a context.Context; packages log through
// zerolog.Ctx(ctx), which yields a disabled logger when none was attached.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console logger. Output defaults to stderr because stdout is
// reserved for the MCP stdio protocol.
func New(debug bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    true,
		PartsOrder: []string{
			zerolog.LevelFieldName,
			zerolog.TimestampFieldName,
			zerolog.MessageFieldName,
		},
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// WithContext attaches a new logger to ctx
func WithContext(ctx context.Context, debug bool, w io.Writer) context.Context {
	logger := New(debug, w)
	return logger.WithContext(ctx)
}

// FromCtx returns the logger stored in ctx
func FromCtx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
