package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/testiflow-api/internal/pkg/logger"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// SessionCookie is the name of the cookie that carries the session token.
const SessionCookie = "token"

type sessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// Auth returns middleware that validates the session token from the cookie or,
// failing that, a Bearer header, and injects the account id into context.
func Auth(sessions sessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized - no token provided")
				return
			}
			accountID, err := sessions.ValidateSession(r.Context(), tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized - invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			ctx = logger.WithAccount(ctx, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AccountIDFromContext extracts the authenticated account id from the request context.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

// WithAccountID returns a context that looks authenticated as accountID.
// Handlers tests use it to skip the token round trip.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}
