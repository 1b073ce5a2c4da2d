package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/dom/task-manager/internal/domain"
	"github.com/dom/task-manager/internal/service"
	"github.com/google/uuid"
)

type contextKey string

const (
	userKey contextKey = "user"
)

// TokenCookieName is the cookie the browser client carries the session
// token in.
const TokenCookieName = "token"

// Auth verifies the session token on each request and attaches the
// resolved user to the request context as the authenticated principal.
// The token is read from the http-only cookie, falling back to an
// Authorization bearer header for non-browser clients. A token whose
// user record no longer exists is rejected the same way as an invalid
// token.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w, "Not authorized, no token")
				return
			}

			userID, err := authService.ValidateToken(token)
			if err != nil {
				log.Printf("ERROR [middleware.Auth] token validation failed: %v", err)
				writeUnauthorized(w, "Not authorized, token failed")
				return
			}

			user, err := authService.GetUserByID(r.Context(), userID)
			if err != nil {
				log.Printf("ERROR [middleware.Auth] failed to resolve user %s: %v", userID, err)
				writeUnauthorized(w, "Not authorized, token failed")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the authenticated principal attached by Auth.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok
}

// GetUserID returns the ID of the authenticated principal.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	user, ok := GetUser(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return user.ID, true
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"` + message + `"}`))
}
