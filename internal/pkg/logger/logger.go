// Package logger configures the process-wide slog logger and derives
// request-scoped loggers from a context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type contextKey string

// AccountIDKey carries the authenticated account id for log enrichment.
const AccountIDKey contextKey = "account_id"

// Setup installs a JSON slog handler at the given level as the default logger.
func Setup(level string) *slog.Logger {
	return setup(os.Stdout, level)
}

func setup(w io.Writer, level string) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithAccount returns a child context carrying accountID for FromContext.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// FromContext returns the default logger enriched with the request id and
// account id found in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if accountID, ok := ctx.Value(AccountIDKey).(string); ok && accountID != "" {
		l = l.With("account_id", accountID)
	}
	return l
}
