package middleware

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/upb/character-chat/models"
)

// Context key type to avoid collisions
type contextKey string

// ClaimsKey is the context key for validated token claims
const ClaimsKey contextKey = "claims"

// Claims represents the validated contents of a bearer token
type Claims struct {
	UserID    uuid.UUID
	Role      models.UserRole
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsAdmin reports whether the claims carry the admin role
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == models.RoleAdmin
}

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// GetClaimsFromContext retrieves token claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// WithClaims adds token claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserIDFromContext returns the authenticated user's id
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims := GetClaimsFromContext(ctx)
	if claims == nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}
