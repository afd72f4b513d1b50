package database

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

const geodataTable = "geodata_providers"

// GeodataAdapter reads rows written by the geodata sync function.
type GeodataAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewGeodataAdapter creates a new geodata adapter
func NewGeodataAdapter(client *postgres.Client) *GeodataAdapter {
	return &GeodataAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.GeodataRepository = (*GeodataAdapter)(nil)

// ListActive returns active rows within scope ordered by external id
func (a *GeodataAdapter) ListActive(ctx context.Context, scope repositories.GeodataScope) ([]repositories.GeodataRecord, error) {
	ds := a.db.Select(
		"external_id", "name", "amenity", "healthcare", "street", "suburb", "city",
		"province", "latitude", "longitude", "phone", "opening_hours", "operator",
		"speciality", "synced_at",
	).From(geodataTable).Where(goqu.Ex{"is_active": true})

	if scope.Province != "" {
		ds = ds.Where(goqu.Ex{"province": scope.Province})
	}
	if scope.City != "" {
		ds = ds.Where(goqu.Ex{"city": scope.City})
	}

	query, args, err := ds.Order(goqu.I("external_id").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build geodata query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query geodata", err)
	}
	defer rows.Close()

	out := []repositories.GeodataRecord{}
	for rows.Next() {
		var (
			r                                               repositories.GeodataRecord
			amenity, healthcare, street, suburb, city, prov sql.NullString
			lat, lng, phone, hours, operator, speciality    sql.NullString
		)
		if err := rows.Scan(
			&r.ExternalID, &r.Name, &amenity, &healthcare, &street, &suburb, &city,
			&prov, &lat, &lng, &phone, &hours, &operator, &speciality, &r.SyncedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan geodata row", err)
		}
		r.Amenity, r.Healthcare = amenity.String, healthcare.String
		r.Street, r.Suburb, r.City, r.Province = street.String, suburb.String, city.String, prov.String
		r.Latitude, r.Longitude = lat.String, lng.String
		r.Phone, r.OpeningHours = phone.String, hours.String
		r.Operator, r.Speciality = operator.String, speciality.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate geodata rows", err)
	}
	return out, nil
}
