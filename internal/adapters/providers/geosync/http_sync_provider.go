package geosync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/cartosante/internal/domain/providers"
)

// HTTPSyncProvider invokes the remote geodata import function.
type HTTPSyncProvider struct {
	functionURL string
	apiKey      string
	httpClient  *http.Client
}

// NewHTTPSyncProvider creates a sync provider. The timeout covers the whole
// import, which can take minutes for a large province.
func NewHTTPSyncProvider(functionURL, apiKey string, timeout time.Duration) *HTTPSyncProvider {
	return &HTTPSyncProvider{
		functionURL: strings.TrimRight(functionURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

var _ providers.GeodataSyncProvider = (*HTTPSyncProvider)(nil)

type syncRequest struct {
	Province string `json:"province"`
	City     string `json:"city,omitempty"`
	Persist  bool   `json:"persist"`
}

type syncResponse struct {
	Imported int    `json:"imported"`
	Count    *int   `json:"count,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Sync asks the function to import providers for scope.
func (p *HTTPSyncProvider) Sync(ctx context.Context, scope providers.SyncScope) (*providers.SyncResult, error) {
	if p.functionURL == "" {
		return nil, fmt.Errorf("geodata sync function is not configured")
	}

	body, err := json.Marshal(syncRequest{Province: scope.Province, City: scope.City, Persist: scope.Persist})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.functionURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geodata sync request failed: %w", err)
	}
	defer resp.Body.Close()

	var out syncResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return nil, fmt.Errorf("geodata sync returned status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("geodata sync returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode geodata sync response: %w", decodeErr)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("geodata sync failed: %s", out.Error)
	}

	imported := out.Imported
	if out.Count != nil && imported == 0 {
		imported = *out.Count
	}
	return &providers.SyncResult{Imported: imported, Message: out.Message}, nil
}
