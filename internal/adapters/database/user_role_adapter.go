package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// UserRoleAdapter reads the user_roles table maintained by the
// authentication service.
type UserRoleAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserRoleAdapter creates a new role adapter
func NewUserRoleAdapter(client *postgres.Client) *UserRoleAdapter {
	return &UserRoleAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.RoleRepository = (*UserRoleAdapter)(nil)

// GetUserRoles returns every role granted to userID. Unknown users have none.
func (a *UserRoleAdapter) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	query, args, err := a.db.Select("role").
		From("user_roles").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("role").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build role query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query user roles", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, apperrors.NewInternalError("failed to scan role", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate roles", err)
	}
	return roles, nil
}
