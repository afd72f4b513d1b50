package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	tsclient "github.com/zatekoja/cartosante/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cartosante/pkg/config"
	"github.com/zatekoja/cartosante/pkg/retry"
)

func TestProviderDocument(t *testing.T) {
	p := &entities.Provider{
		ID:          "cur-elrapha",
		Name:        "Clinique Él Rapha",
		Type:        entities.ProviderTypeClinic,
		City:        " Libreville ",
		Coordinates: &entities.Coordinates{Lat: 0.4861, Lng: 9.4198},
		Specialties: []string{"Cardiologie", "cardiologie"},
		Coverage:    entities.Coverage{CNAMGS: true},
	}

	doc := providerDocument(p, 42)

	assert.Equal(t, "cur-elrapha", doc["id"])
	assert.Equal(t, "clinique el rapha", doc["name_folded"])
	assert.Equal(t, "Libreville", doc["city"])
	assert.Equal(t, []float64{0.4861, 9.4198}, doc["location"])
	assert.Equal(t, []string{"cardiologie"}, doc["specialties"])
	assert.Equal(t, true, doc["cnamgs"])
	assert.Equal(t, int64(42), doc["indexed_at"])
}

func TestProviderDocument_NoLocationWithoutCoordinates(t *testing.T) {
	doc := providerDocument(&entities.Provider{ID: "x", Name: "X"}, 1)
	_, ok := doc["location"]
	assert.False(t, ok)
}

type fakeTypesense struct {
	mu       sync.Mutex
	upserted []string
	deleted  string
}

func (f *fakeTypesense) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/health":
		_, _ = w.Write([]byte(`{"ok":true}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/providers/documents":
		var doc map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.upserted = append(f.upserted, doc["id"].(string))
		_ = json.NewEncoder(w).Encode(doc)
	case r.Method == http.MethodDelete && r.URL.Path == "/collections/providers/documents":
		f.deleted = r.URL.Query().Get("filter_by")
		_, _ = w.Write([]byte(`{"num_deleted":1}`))
	case r.Method == http.MethodGet && r.URL.Path == "/collections/providers/documents/search":
		_, _ = w.Write([]byte(`{"found":2,"out_of":2,"page":1,"search_time_ms":1,"hits":[{"document":{"id":"cur-chul"}},{"document":{"id":"cur-chuo"}}]}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestAdapter(t *testing.T) (*TypesenseAdapter, *fakeTypesense) {
	t.Helper()
	fake := &fakeTypesense{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client, err := tsclient.NewClient(context.Background(), &config.TypesenseConfig{URL: srv.URL, APIKey: "test"}, retry.Config{MaxAttempts: 1})
	require.NoError(t, err)

	adapter := NewTypesenseAdapter(client)
	adapter.now = func() time.Time { return time.Unix(0, 1700) }
	return adapter, fake
}

func TestTypesenseAdapter_IndexAllPrunesOlderDocuments(t *testing.T) {
	adapter, fake := newTestAdapter(t)

	err := adapter.IndexAll(context.Background(), []entities.Provider{
		{ID: "a", Name: "A", Type: entities.ProviderTypePharmacy},
		{ID: "b", Name: "B", Type: entities.ProviderTypeClinic},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, fake.upserted)
	assert.True(t, strings.HasPrefix(fake.deleted, "indexed_at:<1700"), fake.deleted)
}

func TestTypesenseAdapter_Suggest(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	ids, err := adapter.Suggest(context.Background(), "centre hosp", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"cur-chul", "cur-chuo"}, ids)
}
