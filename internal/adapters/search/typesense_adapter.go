package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	tsclient "github.com/zatekoja/cartosante/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	"github.com/zatekoja/cartosante/pkg/utils"
)

const collectionName = "providers"

// TypesenseAdapter keeps a Typesense collection of the provider aggregate for
// name autocomplete.
type TypesenseAdapter struct {
	client *tsclient.Client
	now    func() time.Time
}

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client, now: time.Now}
}

var _ repositories.ProviderSearchRepository = (*TypesenseAdapter)(nil)

// InitSchema initializes the Typesense collection
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "name", Type: "string"},
			{Name: "name_folded", Type: "string"},
			{Name: "type", Type: "string", Facet: pointer.True()},
			{Name: "province", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "city", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "location", Type: "geopoint", Optional: pointer.True()},
			{Name: "open_24_7", Type: "bool", Facet: pointer.True()},
			{Name: "cnamgs", Type: "bool", Facet: pointer.True()},
			{Name: "specialties", Type: "string[]", Optional: pointer.True()},
			{Name: "services", Type: "string[]", Optional: pointer.True()},
			{Name: "indexed_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("indexed_at"),
	}

	if _, err := a.client.Client().Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	observability.LoggerFromContext(ctx).Info().Str("collection", collectionName).Msg("created Typesense collection")
	return nil
}

// IndexAll upserts every provider, then removes documents left over from
// earlier aggregates.
func (a *TypesenseAdapter) IndexAll(ctx context.Context, providers []entities.Provider) error {
	stamp := a.now().UnixNano()
	for i := range providers {
		doc := providerDocument(&providers[i], stamp)
		if _, err := a.client.Client().Collection(collectionName).Documents().Upsert(ctx, doc); err != nil {
			return fmt.Errorf("failed to index provider %s: %w", providers[i].ID, err)
		}
	}

	_, err := a.client.Client().Collection(collectionName).Documents().Delete(ctx, &api.DeleteDocumentsParams{
		FilterBy: pointer.String(fmt.Sprintf("indexed_at:<%d", stamp)),
	})
	if err != nil {
		return fmt.Errorf("failed to prune stale providers: %w", err)
	}
	return nil
}

// Suggest returns ids of providers whose name starts with query.
func (a *TypesenseAdapter) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	params := &api.SearchCollectionParams{
		Q:             pointer.String(query),
		QueryBy:       pointer.String("name,name_folded"),
		IncludeFields: pointer.String("id"),
		PerPage:       pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search providers: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func providerDocument(p *entities.Provider, indexedAt int64) map[string]interface{} {
	doc := map[string]interface{}{
		"id":          p.ID,
		"name":        p.Name,
		"name_folded": utils.FoldKey(p.Name),
		"type":        string(p.Type),
		"province":    strings.TrimSpace(p.Province),
		"city":        strings.TrimSpace(p.City),
		"open_24_7":   p.Open24_7,
		"cnamgs":      p.Coverage.CNAMGS,
		"specialties": utils.NormalizeTags(p.Specialties),
		"services":    utils.NormalizeTags(p.Services),
		"indexed_at":  indexedAt,
	}
	if p.Coordinates != nil && p.Coordinates.InRange() {
		doc["location"] = []float64{p.Coordinates.Lat, p.Coordinates.Lng}
	}
	return doc
}
