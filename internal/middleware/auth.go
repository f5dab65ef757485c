package middleware

import (
	"context"
	"net/http"
	"strings"

	"wallet/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			serveAs(secret, token, w, r, next)
		})
	}
}

// StreamAuth is Auth for long-lived connections. Browsers cannot set headers
// on EventSource or WebSocket requests, so the token may come as ?token=.
func StreamAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				token, _ = bearerToken(r.Header.Get("Authorization"))
			}
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			serveAs(secret, token, w, r, next)
		})
	}
}

// OptionalAuth identifies the caller when a valid bearer token is present and
// otherwise serves the request anonymously.
func OptionalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				if claims, err := auth.ParseToken(secret, token); err == nil {
					r = r.WithContext(WithUserID(r.Context(), claims.UserID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func serveAs(secret, token string, w http.ResponseWriter, r *http.Request, next http.Handler) {
	claims, err := auth.ParseToken(secret, token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
