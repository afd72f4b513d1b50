package sources

import (
	"context"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
)

// GeodataSource reads the rows imported by the geodata sync function and
// presents them in the upstream tag schema.
type GeodataSource struct {
	repo  repositories.GeodataRepository
	scope repositories.GeodataScope
}

// NewGeodataSource creates a geodata source limited to scope.
func NewGeodataSource(repo repositories.GeodataRepository, scope repositories.GeodataScope) *GeodataSource {
	return &GeodataSource{repo: repo, scope: scope}
}

var _ repositories.ProviderSource = (*GeodataSource)(nil)

// Source returns the geodata tag.
func (s *GeodataSource) Source() entities.Source {
	return entities.SourceGeodata
}

// Fetch returns one raw record per active row.
func (s *GeodataSource) Fetch(ctx context.Context) ([]entities.RawRecord, error) {
	rows, err := s.repo.ListActive(ctx, s.scope)
	if err != nil {
		return nil, err
	}

	records := make([]entities.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, entities.NewRawRecord(entities.SourceGeodata, geodataFields(row)))
	}
	return records, nil
}

func geodataFields(row repositories.GeodataRecord) map[string]any {
	fields := map[string]any{
		"osm_id": row.ExternalID,
		"name":   row.Name,
	}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("amenity", row.Amenity)
	set("healthcare", row.Healthcare)
	set("addr:street", row.Street)
	set("addr:suburb", row.Suburb)
	set("addr:city", row.City)
	set("addr:province", row.Province)
	set("lat", row.Latitude)
	set("lon", row.Longitude)
	set("phone", row.Phone)
	set("opening_hours", row.OpeningHours)
	set("operator:type", row.Operator)
	set("healthcare:speciality", row.Speciality)
	return fields
}
