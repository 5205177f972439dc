package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default slog logger. A nil writer means stderr, which
// keeps stdout free for command output.
func Setup(level string, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithChunk tags ctx with the sequence number of the chunk being processed.
func WithChunk(ctx context.Context, seq int) context.Context {
	return context.WithValue(ctx, contextKey{}, seq)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if seq, ok := ctx.Value(contextKey{}).(int); ok {
		logger = logger.With("chunk", seq)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
