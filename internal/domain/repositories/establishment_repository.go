package repositories

import (
	"context"

	"github.com/zatekoja/cartosante/internal/domain/entities"
)

// EstablishmentRepository defines the interface for operator-entered establishment records
type EstablishmentRepository interface {
	// Create creates a new establishment
	Create(ctx context.Context, establishment *entities.Establishment) error

	// GetByID retrieves an establishment by ID
	GetByID(ctx context.Context, id string) (*entities.Establishment, error)

	// GetByIDs retrieves multiple establishments by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error)

	// Update updates an establishment
	Update(ctx context.Context, establishment *entities.Establishment) error

	// Deactivate soft-deletes an establishment
	Deactivate(ctx context.Context, id string) error

	// List retrieves establishments with filters
	List(ctx context.Context, filter entities.EstablishmentFilter) ([]*entities.Establishment, error)
}
