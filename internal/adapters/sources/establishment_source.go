package sources

import (
	"context"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
)

const establishmentPageSize = 200

// EstablishmentSource exposes active operator-entered establishments.
type EstablishmentSource struct {
	repo repositories.EstablishmentRepository
}

// NewEstablishmentSource creates an establishment source.
func NewEstablishmentSource(repo repositories.EstablishmentRepository) *EstablishmentSource {
	return &EstablishmentSource{repo: repo}
}

var _ repositories.ProviderSource = (*EstablishmentSource)(nil)

// Source returns the establishment tag.
func (s *EstablishmentSource) Source() entities.Source {
	return entities.SourceEstablishment
}

// Fetch pages through every active establishment.
func (s *EstablishmentSource) Fetch(ctx context.Context) ([]entities.RawRecord, error) {
	active := true
	var records []entities.RawRecord
	for offset := 0; ; offset += establishmentPageSize {
		page, err := s.repo.List(ctx, entities.EstablishmentFilter{
			IsActive: &active,
			Limit:    establishmentPageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range page {
			records = append(records, entities.NewRawRecord(entities.SourceEstablishment, establishmentFields(e)))
		}
		if len(page) < establishmentPageSize {
			break
		}
	}
	return records, nil
}

func establishmentFields(e *entities.Establishment) map[string]any {
	fields := map[string]any{
		"id":           e.ID,
		"name":         e.Name,
		"type":         string(e.Type),
		"street":       e.Street,
		"neighborhood": e.Neighborhood,
		"city":         e.City,
		"province":     e.Province,
		"phones":       e.Phones,
		"open_24_7":    e.Open24_7,
		"cnamgs":       e.CNAMGS,
		"cnss":         e.CNSS,
		"sector":       string(e.Sector),
		"services":     e.Services,
		"specialties":  e.Specialties,
		"status":       string(entities.StatusOperational),
	}
	if e.Latitude != nil && e.Longitude != nil {
		fields["latitude"] = *e.Latitude
		fields["longitude"] = *e.Longitude
	}
	return fields
}
