package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/zatekoja/cartosante/internal/application/services"
	"github.com/zatekoja/cartosante/internal/domain/entities"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

const (
	defaultSuggestLimit = 8
	maxSuggestLimit     = 25
)

// DirectoryReader answers read queries over the provider aggregate.
type DirectoryReader interface {
	Search(ctx context.Context, q services.SearchQuery) (*services.SearchResult, error)
	Get(ctx context.Context, id string) (*entities.Provider, error)
	Suggest(ctx context.Context, query string, limit int) ([]entities.Provider, error)
}

// ProviderHandler serves the public provider directory.
type ProviderHandler struct {
	directory DirectoryReader
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(directory DirectoryReader) *ProviderHandler {
	return &ProviderHandler{directory: directory}
}

// ProviderSuggestion is the lightweight shape used by autocomplete.
type ProviderSuggestion struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Type     entities.ProviderType `json:"type"`
	City     string                `json:"city,omitempty"`
	Province string                `json:"province,omitempty"`
}

// SearchProviders handles GET /api/providers
func (h *ProviderHandler) SearchProviders(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.directory.Search(r.Context(), query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// ExportGeoJSON handles GET /api/providers.geojson. Providers without
// coordinates are left out of the collection.
func (h *ProviderHandler) ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.directory.Search(r.Context(), query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	collection, err := featureCollection(result.Providers)
	if err != nil {
		respondWithAppError(w, r, apperrors.NewInternalError("failed to build geojson", err))
		return
	}
	w.Header().Set("X-Directory-Version", strconv.FormatUint(result.Version, 10))
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	data, err := collection.MarshalJSON()
	if err != nil {
		return
	}
	_, _ = w.Write(data)
}

// SuggestProviders handles GET /api/providers/suggest
func (h *ProviderHandler) SuggestProviders(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultSuggestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxSuggestLimit)
	}

	found, err := h.directory.Suggest(r.Context(), q, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	suggestions := make([]ProviderSuggestion, 0, len(found))
	for _, p := range found {
		suggestions = append(suggestions, ProviderSuggestion{
			ID:       p.ID,
			Name:     p.Name,
			Type:     p.Type,
			City:     p.City,
			Province: p.Province,
		})
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// GetProvider handles GET /api/providers/{id}
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "provider ID is required")
		return
	}

	provider, err := h.directory.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, provider)
}

func parseSearchQuery(values url.Values) (services.SearchQuery, error) {
	var q services.SearchQuery
	spec := &q.Filter

	if raw := values.Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			t, ok := entities.ParseProviderType(part)
			if !ok {
				return q, apperrors.NewValidationError(fmt.Sprintf("unknown provider type %q", strings.TrimSpace(part)))
			}
			spec.Types = append(spec.Types, t)
		}
	}

	spec.Province = strings.TrimSpace(values.Get("province"))
	spec.Specialty = strings.TrimSpace(values.Get("specialty"))
	spec.Equipment = strings.TrimSpace(values.Get("equipment"))
	spec.SearchText = strings.TrimSpace(values.Get("q"))
	q.Sort = values.Get("sort")

	flags := []struct {
		name string
		dst  *bool
	}{
		{"open24_7", &spec.Open24_7},
		{"cnamgs", &spec.CNAMGS},
		{"urgent", &spec.Urgent},
		{"near_me", &spec.NearMe},
	}
	for _, f := range flags {
		raw := values.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, apperrors.NewValidationError(fmt.Sprintf("%s must be a boolean", f.name))
		}
		*f.dst = v
	}

	if raw := values.Get("max_distance"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return q, apperrors.NewValidationError("max_distance must be a positive number of kilometers")
		}
		spec.MaxDistanceKm = d
	}

	latRaw, lngRaw := values.Get("lat"), values.Get("lng")
	if latRaw != "" || lngRaw != "" {
		if latRaw == "" || lngRaw == "" {
			return q, apperrors.NewValidationError("lat and lng must be given together")
		}
		lat, errLat := strconv.ParseFloat(latRaw, 64)
		lng, errLng := strconv.ParseFloat(lngRaw, 64)
		loc := entities.Coordinates{Lat: lat, Lng: lng}
		if errLat != nil || errLng != nil || !loc.InRange() {
			return q, apperrors.NewValidationError("lat and lng must be valid coordinates")
		}
		q.UserLocation = &loc
	}

	return q, nil
}

func featureCollection(results []entities.ProviderResult) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(results))}
	for _, r := range results {
		if r.Coordinates == nil || !r.Coordinates.InRange() {
			continue
		}
		point, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{r.Coordinates.Lng, r.Coordinates.Lat})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", r.ID, err)
		}
		properties := map[string]interface{}{
			"name":      r.Name,
			"type":      r.Type,
			"province":  r.Province,
			"city":      r.City,
			"address":   r.Address,
			"phones":    r.Phones,
			"open_24_7": r.Open24_7,
			"cnamgs":    r.Coverage.CNAMGS,
			"sector":    r.Sector,
			"source":    r.Source,
		}
		if r.DistanceKm != nil {
			properties["distance_km"] = *r.DistanceKm
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.ID,
			Geometry:   point,
			Properties: properties,
		})
	}
	return fc, nil
}
