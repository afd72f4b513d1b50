package geocoding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	"github.com/zatekoja/cartosante/pkg/geo"
)

const (
	googleGeocodeURL   = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultRegion      = "ga"
	geocodeCacheTTL    = 60 * 60 * 24 * 30
	defaultHTTPTimeout = 8 * time.Second
)

// GoogleGeocoder geocodes establishment addresses with the Google Geocoding
// API. Hits are cached for a month when a cache is given.
type GoogleGeocoder struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient *http.Client
	cache      providers.CacheProvider
}

// Option customizes a GoogleGeocoder.
type Option func(*GoogleGeocoder)

// WithBaseURL points the geocoder at another endpoint.
func WithBaseURL(baseURL string) Option {
	return func(g *GoogleGeocoder) {
		if strings.TrimSpace(baseURL) != "" {
			g.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GoogleGeocoder) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// NewGoogleGeocoder creates a geocoder biased towards Gabon.
func NewGoogleGeocoder(apiKey string, cache providers.CacheProvider, opts ...Option) *GoogleGeocoder {
	g := &GoogleGeocoder{
		apiKey:     apiKey,
		baseURL:    googleGeocodeURL,
		region:     defaultRegion,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		cache:      cache,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ providers.Geocoder = (*GoogleGeocoder)(nil)

// Geocode returns the coordinates of the best match for address.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (*geo.Point, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required")
	}

	cacheKey := "geocode:v1:" + hashKey(strings.ToLower(trimmed))
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil {
			var p geo.Point
			if err := json.Unmarshal(cached, &p); err == nil && p.InRange() {
				return &p, nil
			}
		}
	}

	resp, err := g.doRequest(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
		return nil, providers.ErrNoGeocode
	}

	loc := resp.Results[0].Geometry.Location
	p := geo.Point{Lat: loc.Lat, Lng: loc.Lng}
	if !p.InRange() {
		return nil, providers.ErrNoGeocode
	}

	if g.cache != nil {
		if payload, err := json.Marshal(p); err == nil {
			if err := g.cache.Set(ctx, cacheKey, payload, geocodeCacheTTL); err != nil {
				observability.LoggerFromContext(ctx).Debug().Err(err).Msg("failed to cache geocode")
			}
		}
	}
	return &p, nil
}

func (g *GoogleGeocoder) doRequest(ctx context.Context, address string) (*geocodeResponse, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("google maps api key is required")
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("region", g.region)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geocode request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode request returned status %d", resp.StatusCode)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode geocode response: %w", err)
	}
	if payload.Status != "OK" && payload.Status != "ZERO_RESULTS" {
		if payload.ErrorMessage != "" {
			return nil, fmt.Errorf("geocode request failed: %s - %s", payload.Status, payload.ErrorMessage)
		}
		return nil, fmt.Errorf("geocode request failed: %s", payload.Status)
	}
	return &payload, nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}
