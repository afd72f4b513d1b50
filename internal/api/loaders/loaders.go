package loaders

import (
	"context"
	"fmt"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// EstablishmentFetcher returns establishments in the order of ids, with nil
// for ids that do not exist.
type EstablishmentFetcher interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error)
}

// Loaders batches lookups made while serving one request.
type Loaders struct {
	Establishment *dataloader.Loader[string, *entities.Establishment]
}

// New creates request-scoped loaders.
func New(fetcher EstablishmentFetcher) *Loaders {
	return &Loaders{
		Establishment: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Establishment] {
			results := make([]*dataloader.Result[*entities.Establishment], len(keys))
			found, err := fetcher.GetByIDs(ctx, keys)

			for i, key := range keys {
				switch {
				case err != nil:
					results[i] = &dataloader.Result[*entities.Establishment]{Error: err}
				case i < len(found) && found[i] != nil:
					results[i] = &dataloader.Result[*entities.Establishment]{Data: found[i]}
				default:
					results[i] = &dataloader.Result[*entities.Establishment]{
						Error: apperrors.NewNotFoundError(fmt.Sprintf("establishment with id %s not found", key)),
					}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, or nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches fresh loaders to every request.
func Middleware(fetcher EstablishmentFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLoaders(r.Context(), New(fetcher))))
		})
	}
}
