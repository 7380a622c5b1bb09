package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/infrastructure/security"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
)

type contextKey int

const (
	userIDKey contextKey = iota
	claimsKey
)

// TokenValidator verifies bearer tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*security.Claims, error)
}

// Authenticate requires a valid bearer token and stores the caller in the
// request context. Browsers cannot set headers on websocket upgrades, so the
// token is also accepted from the access_token query parameter there.
func Authenticate(tokens TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, r, apperrors.NewUnauthorizedError("Authorization header required"), 0)
				return
			}

			claims, err := tokens.ValidateToken(r.Context(), token)
			if err != nil {
				WriteError(w, r, apperrors.NewUnauthorizedError("Invalid or expired token"), 0)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				WriteError(w, r, apperrors.NewUnauthorizedError("Invalid token subject"), 0)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose token lacks role
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteError(w, r, apperrors.NewUnauthorizedError("Authentication required"), 0)
				return
			}
			if !claims.HasRole(role) {
				WriteError(w, r, apperrors.NewForbiddenError("Insufficient permissions"), 0)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// ClaimsFromContext returns the validated token claims
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.Claims)
	return claims, ok
}

// WithUserID stores userID in ctx
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if t := r.URL.Query().Get("access_token"); t != "" {
				return t, true
			}
		}
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
