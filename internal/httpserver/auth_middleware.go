package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chatbackend/internal/domain"
	"chatbackend/internal/identity"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// WithUser returns a new context carrying the current user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser extracts the current user from context, if any.
func CurrentUser(r *http.Request) *domain.User {
	if v := r.Context().Value(userContextKey); v != nil {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

// AuthMiddleware resolves the Bearer credential (provider or local) to a
// user and attaches it to the request context.
func AuthMiddleware(resolver *identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized, token missing"})
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrTokenInvalid):
					writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized, token invalid"})
				case errors.Is(err, identity.ErrUnresolvable):
					writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized, user not found"})
				default:
					writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func extractBearer(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}
