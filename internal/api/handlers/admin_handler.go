package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/cartosante/internal/application/services"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

// DirectoryMaintainer rebuilds and reindexes the aggregate.
type DirectoryMaintainer interface {
	Load(ctx context.Context) (*services.LoadReport, error)
	Reindex(ctx context.Context) (int, error)
}

// GeodataSyncer imports external geodata.
type GeodataSyncer interface {
	Sync(ctx context.Context, scope providers.SyncScope) (*services.SyncReport, error)
}

// AdminHandler serves directory maintenance endpoints.
type AdminHandler struct {
	directory DirectoryMaintainer
	syncer    GeodataSyncer
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(directory DirectoryMaintainer, syncer GeodataSyncer) *AdminHandler {
	return &AdminHandler{directory: directory, syncer: syncer}
}

// ReloadDirectory handles POST /api/admin/directory/reload
func (h *AdminHandler) ReloadDirectory(w http.ResponseWriter, r *http.Request) {
	report, err := h.directory.Load(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	observability.LoggerFromContext(r.Context()).Info().
		Uint64("version", report.Version).
		Int("count", report.Count).
		Msg("directory reloaded by admin")
	respondWithJSON(w, http.StatusOK, report)
}

// SyncGeodata handles POST /api/admin/directory/sync
func (h *AdminHandler) SyncGeodata(w http.ResponseWriter, r *http.Request) {
	var scope providers.SyncScope
	if err := decodeJSON(w, r, &scope); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	report, err := h.syncer.Sync(r.Context(), scope)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// ReindexDirectory handles POST /api/admin/directory/reindex
func (h *AdminHandler) ReindexDirectory(w http.ResponseWriter, r *http.Request) {
	n, err := h.directory.Reindex(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"indexed": n})
}
