package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

// EstablishmentPatch carries the fields of a partial update. Nil fields are
// left unchanged.
type EstablishmentPatch struct {
	Name         *string                `json:"name,omitempty"`
	Type         *entities.ProviderType `json:"type,omitempty"`
	Province     *string                `json:"province,omitempty"`
	City         *string                `json:"city,omitempty"`
	Neighborhood *string                `json:"neighborhood,omitempty"`
	Street       *string                `json:"street,omitempty"`
	Latitude     *float64               `json:"latitude,omitempty"`
	Longitude    *float64               `json:"longitude,omitempty"`
	Phones       []string               `json:"phones,omitempty"`
	Open24_7     *bool                  `json:"open_24_7,omitempty"`
	CNAMGS       *bool                  `json:"cnamgs,omitempty"`
	CNSS         *bool                  `json:"cnss,omitempty"`
	Sector       *entities.Sector       `json:"sector,omitempty"`
	Services     []string               `json:"services,omitempty"`
	Specialties  []string               `json:"specialties,omitempty"`
	IsActive     *bool                  `json:"is_active,omitempty"`
}

// EstablishmentService manages operator-entered establishments. Every change
// reloads the directory, since these records outrank every other source.
type EstablishmentService struct {
	repo      repositories.EstablishmentRepository
	directory DirectoryLoader
	eventBus  providers.EventBus
	geocoder  providers.Geocoder
}

// NewEstablishmentService creates a new establishment service
func NewEstablishmentService(repo repositories.EstablishmentRepository, directory DirectoryLoader, eventBus providers.EventBus) *EstablishmentService {
	return &EstablishmentService{repo: repo, directory: directory, eventBus: eventBus}
}

// WithGeocoder fills missing coordinates from the address on create and
// update.
func (s *EstablishmentService) WithGeocoder(g providers.Geocoder) *EstablishmentService {
	s.geocoder = g
	return s
}

// Create validates and stores a new establishment.
func (s *EstablishmentService) Create(ctx context.Context, e *entities.Establishment, actor string) error {
	normalizeEstablishment(e)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Sector == "" {
		e.Sector = entities.SectorPrivate
	}
	e.IsActive = true
	e.CreatedBy = actor
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	s.geocode(ctx, e)

	if problems := e.Validate(); len(problems) > 0 {
		return apperrors.NewValidationError(strings.Join(problems, "; "))
	}

	// 1. Save to database
	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}

	// 2. Refresh the directory
	s.afterChange(ctx, e.ID, "created")
	return nil
}

// GetByID returns one establishment.
func (s *EstablishmentService) GetByID(ctx context.Context, id string) (*entities.Establishment, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIDs returns establishments in the order of ids; missing ids yield nil.
func (s *EstablishmentService) GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error) {
	found, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.Establishment, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	out := make([]*entities.Establishment, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

// List returns establishments matching filter.
func (s *EstablishmentService) List(ctx context.Context, filter entities.EstablishmentFilter) ([]*entities.Establishment, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Update applies patch to the establishment with id.
func (s *EstablishmentService) Update(ctx context.Context, id string, patch EstablishmentPatch) (*entities.Establishment, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyPatch(e, patch)
	normalizeEstablishment(e)
	e.UpdatedAt = time.Now().UTC()
	s.geocode(ctx, e)

	if problems := e.Validate(); len(problems) > 0 {
		return nil, apperrors.NewValidationError(strings.Join(problems, "; "))
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	s.afterChange(ctx, e.ID, "updated")
	return e, nil
}

// Deactivate removes the establishment from the directory.
func (s *EstablishmentService) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.afterChange(ctx, id, "deactivated")
	return nil
}

func (s *EstablishmentService) afterChange(ctx context.Context, id, action string) {
	logger := observability.LoggerFromContext(ctx)

	var version uint64
	if s.directory != nil {
		report, err := s.directory.Load(ctx)
		if err != nil {
			// the record is saved; the next load will pick it up
			logger.Warn().Err(err).Str("establishment_id", id).Msg("directory reload after establishment change failed")
		} else {
			version = report.Version
		}
	}

	if s.eventBus != nil {
		event := entities.NewDirectoryEvent(entities.DirectoryEventEstablishmentChanged, version, 0, map[string]interface{}{
			"establishment_id": id,
			"action":           action,
		})
		if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish establishment event")
		}
	}
}

// geocode looks up coordinates for establishments that have a city but no
// position. Failures leave the record without coordinates.
func (s *EstablishmentService) geocode(ctx context.Context, e *entities.Establishment) {
	if s.geocoder == nil || e.Latitude != nil || e.Longitude != nil || e.City == "" {
		return
	}

	p, err := s.geocoder.Geocode(ctx, establishmentAddress(e))
	if err != nil {
		logger := observability.LoggerFromContext(ctx)
		if errors.Is(err, providers.ErrNoGeocode) {
			logger.Info().Str("establishment_id", e.ID).Msg("establishment address did not geocode")
		} else {
			logger.Warn().Err(err).Str("establishment_id", e.ID).Msg("geocoding failed")
		}
		return
	}
	lat, lng := p.Lat, p.Lng
	e.Latitude, e.Longitude = &lat, &lng
}

func establishmentAddress(e *entities.Establishment) string {
	parts := make([]string, 0, 5)
	for _, part := range []string{e.Street, e.Neighborhood, e.City, e.Province} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(append(parts, "Gabon"), ", ")
}

func normalizeEstablishment(e *entities.Establishment) {
	e.Name = strings.TrimSpace(e.Name)
	e.Province = strings.TrimSpace(e.Province)
	e.City = strings.TrimSpace(e.City)
	e.Neighborhood = strings.TrimSpace(e.Neighborhood)
	e.Street = strings.TrimSpace(e.Street)
	if t, ok := entities.ParseProviderType(string(e.Type)); ok {
		e.Type = t
	}
	e.Phones = coerceStringList(e.Phones)
	e.Services = dedupeTags(coerceStringList(e.Services))
	e.Specialties = dedupeTags(coerceStringList(e.Specialties))
}

func applyPatch(e *entities.Establishment, p EstablishmentPatch) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Province != nil {
		e.Province = *p.Province
	}
	if p.City != nil {
		e.City = *p.City
	}
	if p.Neighborhood != nil {
		e.Neighborhood = *p.Neighborhood
	}
	if p.Street != nil {
		e.Street = *p.Street
	}
	if p.Latitude != nil {
		e.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		e.Longitude = p.Longitude
	}
	if p.Phones != nil {
		e.Phones = p.Phones
	}
	if p.Open24_7 != nil {
		e.Open24_7 = *p.Open24_7
	}
	if p.CNAMGS != nil {
		e.CNAMGS = *p.CNAMGS
	}
	if p.CNSS != nil {
		e.CNSS = *p.CNSS
	}
	if p.Sector != nil {
		e.Sector = *p.Sector
	}
	if p.Services != nil {
		e.Services = p.Services
	}
	if p.Specialties != nil {
		e.Specialties = p.Specialties
	}
	if p.IsActive != nil {
		e.IsActive = *p.IsActive
	}
}
