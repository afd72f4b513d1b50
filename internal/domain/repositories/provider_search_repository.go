package repositories

import (
	"context"

	"github.com/zatekoja/cartosante/internal/domain/entities"
)

// ProviderSearchRepository is the external full-text index over the aggregate
// (e.g. Typesense). It backs autocomplete only; filtering stays in memory.
type ProviderSearchRepository interface {
	// InitSchema ensures the collection exists
	InitSchema(ctx context.Context) error

	// IndexAll replaces the indexed documents with providers
	IndexAll(ctx context.Context, providers []entities.Provider) error

	// Suggest returns provider IDs whose name prefix-matches query
	Suggest(ctx context.Context, query string, limit int) ([]string, error)
}
