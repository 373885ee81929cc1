package auth

import (
	"context"

	"github.com/userdesk/userdesk/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal stores the authenticated user in ctx.
func ContextWithPrincipal(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, principalContextKey, user)
}

// PrincipalFromContext returns the authenticated user, or nil.
func PrincipalFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(principalContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// MustPrincipalFromContext panics if no principal is present.
// Use only behind the Authenticate middleware.
func MustPrincipalFromContext(ctx context.Context) *model.User {
	user := PrincipalFromContext(ctx)
	if user == nil {
		panic("principal not found - ensure auth middleware is applied")
	}
	return user
}

// UserIDFromContext returns the principal's ID, or 0 if unauthenticated.
func UserIDFromContext(ctx context.Context) int64 {
	user := PrincipalFromContext(ctx)
	if user == nil {
		return 0
	}
	return user.ID
}
