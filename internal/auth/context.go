package auth

import (
	"context"

	"github.com/dukerupert/spotx/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	UserID string
	Email  string
	Role   model.Role
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}

// HasRole reports whether the caller has one of roles. Admins pass every check.
func HasRole(ctx context.Context, roles ...model.Role) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	if ac.Role == model.RoleAdmin {
		return true
	}
	for _, r := range roles {
		if ac.Role == r {
			return true
		}
	}
	return false
}
