package geosync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/domain/providers"
)

func TestHTTPSyncProvider_Sync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var req syncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, syncRequest{Province: "Estuaire", City: "Libreville", Persist: true}, req)

		_, _ = w.Write([]byte(`{"imported": 42, "message": "ok"}`))
	}))
	defer server.Close()

	result, err := NewHTTPSyncProvider(server.URL, "service-key", time.Second).Sync(context.Background(), providers.SyncScope{
		Province: "Estuaire", City: "Libreville", Persist: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result.Imported)
	assert.Equal(t, "ok", result.Message)
}

func TestHTTPSyncProvider_CountFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 7}`))
	}))
	defer server.Close()

	result, err := NewHTTPSyncProvider(server.URL, "", time.Second).Sync(context.Background(), providers.SyncScope{Province: "Ogooué-Maritime"})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Imported)
}

func TestHTTPSyncProvider_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"upstream error body", http.StatusInternalServerError, `{"error":"overpass timeout"}`, "overpass timeout"},
		{"bare status", http.StatusBadGateway, ``, "status 502"},
		{"error on success status", http.StatusOK, `{"error":"province not found"}`, "province not found"},
		{"malformed body", http.StatusOK, `not json`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPSyncProvider(server.URL, "", time.Second).Sync(context.Background(), providers.SyncScope{Province: "Estuaire"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestHTTPSyncProvider_NotConfigured(t *testing.T) {
	_, err := NewHTTPSyncProvider("", "", time.Second).Sync(context.Background(), providers.SyncScope{Province: "Estuaire"})
	assert.Error(t, err)
}
