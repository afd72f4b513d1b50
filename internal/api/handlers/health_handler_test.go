package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zatekoja/cartosante/internal/api/handlers"
)

func TestHealthHandler(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name    string
		version uint64
		checks  map[string]handlers.HealthCheck
		status  int
		body    string
	}{
		{"healthy", 3, map[string]handlers.HealthCheck{"postgres": up, "redis": up}, http.StatusOK, `"status":"healthy"`},
		{"redis down", 3, map[string]handlers.HealthCheck{"postgres": up, "redis": down}, http.StatusServiceUnavailable, `"redis":"down"`},
		{"not loaded", 0, nil, http.StatusServiceUnavailable, `"status":"degraded"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version := tt.version
			h := handlers.NewHealthHandler(func() uint64 { return version }, tt.checks)
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}
