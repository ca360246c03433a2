// Package logging defines a minimal structured-logging interface used across
// the project. Implementations wrap log/slog and zerolog.
package logging

import (
	"context"
	"io"
	"log/slog"

	"github.com/rs/zerolog"
)

// Environments understood by New.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Backends understood by New.
const (
	BackendSlog    = "slog"
	BackendZerolog = "zerolog"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs diagnostic detail, suppressed in prod.
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

// New builds a Logger for the given environment and backend.
//
// local logs human-readable text at debug level, dev logs JSON at debug
// level and prod logs JSON at info level. Unknown environments behave like
// prod. Unknown backends fall back to slog.
func New(env, backend string, w io.Writer) Logger {
	debug := env == EnvLocal || env == EnvDev

	if backend == BackendZerolog {
		level := zerolog.InfoLevel
		if debug {
			level = zerolog.DebugLevel
		}
		var out io.Writer = w
		if env == EnvLocal {
			out = zerolog.ConsoleWriter{Out: w, NoColor: true}
		}
		return NewZerologLogger(zerolog.New(out).Level(level).With().Timestamp().Logger())
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	if env == EnvLocal {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return NewSlogLogger(slog.New(h))
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
