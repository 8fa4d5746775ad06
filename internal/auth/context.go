package auth

import (
	"context"

	"github.com/straye-as/measure-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      string
	DisplayName string
	Email       string
	Roles       []domain.UserRoleType
	// System is set for API key callers acting on behalf of an integration
	System bool
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRoleType) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user sees every project
func (u *UserContext) IsAdmin() bool {
	return u.System || u.HasRole(domain.RoleAdmin)
}

// CanReview reports whether the user may approve or reject measurement details
func (u *UserContext) CanReview() bool {
	return u.IsAdmin() || u.HasRole(domain.RoleReviewer)
}

// CanWrite reports whether the user may create or change records
func (u *UserContext) CanWrite() bool {
	return u.IsAdmin() || u.HasAnyRole(domain.RoleReviewer, domain.RoleEngineer)
}

// RolesAsStrings returns roles for logging
func (u *UserContext) RolesAsStrings() []string {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	return roles
}

