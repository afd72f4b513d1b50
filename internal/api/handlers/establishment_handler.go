package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/cartosante/internal/api/loaders"
	"github.com/zatekoja/cartosante/internal/api/middleware"
	"github.com/zatekoja/cartosante/internal/application/services"
	"github.com/zatekoja/cartosante/internal/domain/entities"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// EstablishmentManager is the operator-facing establishment workflow.
type EstablishmentManager interface {
	Create(ctx context.Context, e *entities.Establishment, actor string) error
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error)
	List(ctx context.Context, filter entities.EstablishmentFilter) ([]*entities.Establishment, error)
	Update(ctx context.Context, id string, patch services.EstablishmentPatch) (*entities.Establishment, error)
	Deactivate(ctx context.Context, id string) error
}

// EstablishmentHandler serves /api/admin/establishments.
type EstablishmentHandler struct {
	service EstablishmentManager
}

// NewEstablishmentHandler creates a new establishment handler
func NewEstablishmentHandler(service EstablishmentManager) *EstablishmentHandler {
	return &EstablishmentHandler{service: service}
}

type createEstablishmentRequest struct {
	Name         string                `json:"name"`
	Type         entities.ProviderType `json:"type"`
	Province     string                `json:"province"`
	City         string                `json:"city"`
	Neighborhood string                `json:"neighborhood"`
	Street       string                `json:"street"`
	Latitude     *float64              `json:"latitude"`
	Longitude    *float64              `json:"longitude"`
	Phones       []string              `json:"phones"`
	Open24_7     bool                  `json:"open_24_7"`
	CNAMGS       bool                  `json:"cnamgs"`
	CNSS         bool                  `json:"cnss"`
	Sector       entities.Sector       `json:"sector"`
	Services     []string              `json:"services"`
	Specialties  []string              `json:"specialties"`
}

func (req createEstablishmentRequest) toEntity() *entities.Establishment {
	return &entities.Establishment{
		Name:         req.Name,
		Type:         req.Type,
		Province:     req.Province,
		City:         req.City,
		Neighborhood: req.Neighborhood,
		Street:       req.Street,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Phones:       req.Phones,
		Open24_7:     req.Open24_7,
		CNAMGS:       req.CNAMGS,
		CNSS:         req.CNSS,
		Sector:       req.Sector,
		Services:     req.Services,
		Specialties:  req.Specialties,
	}
}

// CreateEstablishment handles POST /api/admin/establishments
func (h *EstablishmentHandler) CreateEstablishment(w http.ResponseWriter, r *http.Request) {
	var req createEstablishmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	e := req.toEntity()
	if err := h.service.Create(r.Context(), e, actorID(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, e)
}

// GetEstablishment handles GET /api/admin/establishments/{id}
func (h *EstablishmentHandler) GetEstablishment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "establishment ID is required")
		return
	}

	e, err := h.loaders(r.Context()).Establishment.Load(r.Context(), id)()
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

// ListEstablishments handles GET /api/admin/establishments. With ids=a,b the
// named establishments are returned in order and unknown ids are skipped.
func (h *EstablishmentHandler) ListEstablishments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if raw := query.Get("ids"); raw != "" {
		h.listByIDs(w, r, splitIDs(raw))
		return
	}

	filter := entities.EstablishmentFilter{
		Province: strings.TrimSpace(query.Get("province")),
	}
	if raw := query.Get("type"); raw != "" {
		t, ok := entities.ParseProviderType(raw)
		if !ok {
			respondWithError(w, http.StatusBadRequest, "unknown establishment type")
			return
		}
		filter.Type = t
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filter.IsActive = &active
	}
	if raw := query.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"establishments": list,
		"count":          len(list),
	})
}

func (h *EstablishmentHandler) listByIDs(w http.ResponseWriter, r *http.Request, ids []string) {
	found, errs := h.loaders(r.Context()).Establishment.LoadMany(r.Context(), ids)()

	list := make([]*entities.Establishment, 0, len(found))
	for i, e := range found {
		if i < len(errs) && errs[i] != nil {
			if !apperrors.IsNotFound(errs[i]) {
				respondWithAppError(w, r, errs[i])
				return
			}
			continue
		}
		if e != nil {
			list = append(list, e)
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"establishments": list,
		"count":          len(list),
	})
}

// UpdateEstablishment handles PATCH /api/admin/establishments/{id}
func (h *EstablishmentHandler) UpdateEstablishment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch services.EstablishmentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	e, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

// DeactivateEstablishment handles DELETE /api/admin/establishments/{id}
func (h *EstablishmentHandler) DeactivateEstablishment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EstablishmentHandler) loaders(ctx context.Context) *loaders.Loaders {
	if l := loaders.For(ctx); l != nil {
		return l
	}
	return loaders.New(h.service)
}

func actorID(r *http.Request) string {
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		return s.UserID
	}
	return ""
}

func splitIDs(raw string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
