package repositories

import (
	"context"

	"github.com/zatekoja/cartosante/internal/domain/entities"
)

// ProviderSource fetches raw provider records from one upstream origin.
type ProviderSource interface {
	// Source returns the provenance tag stamped on every record.
	Source() entities.Source

	// Fetch returns every raw record currently available from the origin.
	Fetch(ctx context.Context) ([]entities.RawRecord, error)
}
