package repositories

import "context"

// RoleRepository resolves the role set attached to an authenticated user.
type RoleRepository interface {
	GetUserRoles(ctx context.Context, userID string) ([]string, error)
}
