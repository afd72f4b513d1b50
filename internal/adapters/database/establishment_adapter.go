package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/repositories"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

const establishmentsTable = "establishments"

var establishmentColumns = []interface{}{
	"id", "name", "type", "province", "city", "neighborhood", "street",
	"latitude", "longitude", "phones", "open_24_7", "cnamgs", "cnss", "sector",
	"services", "specialties", "is_active", "created_by", "created_at", "updated_at",
}

// EstablishmentAdapter implements EstablishmentRepository
type EstablishmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEstablishmentAdapter creates a new establishment adapter
func NewEstablishmentAdapter(client *postgres.Client) *EstablishmentAdapter {
	return &EstablishmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.EstablishmentRepository = (*EstablishmentAdapter)(nil)

func establishmentRecord(e *entities.Establishment) goqu.Record {
	return goqu.Record{
		"name":         e.Name,
		"type":         string(e.Type),
		"province":     e.Province,
		"city":         nullString(e.City),
		"neighborhood": nullString(e.Neighborhood),
		"street":       nullString(e.Street),
		"latitude":     nullFloat(e.Latitude),
		"longitude":    nullFloat(e.Longitude),
		"phones":       pq.Array(nonNil(e.Phones)),
		"open_24_7":    e.Open24_7,
		"cnamgs":       e.CNAMGS,
		"cnss":         e.CNSS,
		"sector":       string(e.Sector),
		"services":     pq.Array(nonNil(e.Services)),
		"specialties":  pq.Array(nonNil(e.Specialties)),
		"is_active":    e.IsActive,
		"updated_at":   e.UpdatedAt,
	}
}

// Create inserts a new establishment
func (a *EstablishmentAdapter) Create(ctx context.Context, e *entities.Establishment) error {
	record := establishmentRecord(e)
	record["id"] = e.ID
	record["created_by"] = nullString(e.CreatedBy)
	record["created_at"] = e.CreatedAt

	query, args, err := a.db.Insert(establishmentsTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.NewConflictError(fmt.Sprintf("establishment %s already exists", e.ID))
		}
		return apperrors.NewInternalError("failed to create establishment", err)
	}
	return nil
}

// GetByID retrieves an establishment by ID
func (a *EstablishmentAdapter) GetByID(ctx context.Context, id string) (*entities.Establishment, error) {
	query, args, err := a.db.Select(establishmentColumns...).
		From(establishmentsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	e, err := scanEstablishment(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("establishment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get establishment", err)
	}
	return e, nil
}

// GetByIDs retrieves establishments by ID in no particular order
func (a *EstablishmentAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error) {
	if len(ids) == 0 {
		return []*entities.Establishment{}, nil
	}

	query, args, err := a.db.Select(establishmentColumns...).
		From(establishmentsTable).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryEstablishments(ctx, query, args)
}

// Update overwrites the mutable fields of an establishment
func (a *EstablishmentAdapter) Update(ctx context.Context, e *entities.Establishment) error {
	query, args, err := a.db.Update(establishmentsTable).
		Set(establishmentRecord(e)).
		Where(goqu.Ex{"id": e.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}
	return a.execAffectingOne(ctx, query, args, e.ID, "update")
}

// Deactivate hides an establishment from the directory
func (a *EstablishmentAdapter) Deactivate(ctx context.Context, id string) error {
	query, args, err := a.db.Update(establishmentsTable).
		Set(goqu.Record{"is_active": false, "updated_at": goqu.L("NOW()")}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build deactivate query", err)
	}
	return a.execAffectingOne(ctx, query, args, id, "deactivate")
}

// List retrieves establishments ordered by name
func (a *EstablishmentAdapter) List(ctx context.Context, filter entities.EstablishmentFilter) ([]*entities.Establishment, error) {
	ds := a.db.Select(establishmentColumns...).From(establishmentsTable)

	if filter.Province != "" {
		ds = ds.Where(goqu.Ex{"province": filter.Province})
	}
	if filter.Type != "" {
		ds = ds.Where(goqu.Ex{"type": string(filter.Type)})
	}
	if filter.IsActive != nil {
		ds = ds.Where(goqu.Ex{"is_active": *filter.IsActive})
	}

	ds = ds.Order(goqu.I("name").Asc(), goqu.I("id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}
	return a.queryEstablishments(ctx, query, args)
}

func (a *EstablishmentAdapter) execAffectingOne(ctx context.Context, query string, args []interface{}, id, op string) error {
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to %s establishment", op), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("establishment with id %s not found", id))
	}
	return nil
}

func (a *EstablishmentAdapter) queryEstablishments(ctx context.Context, query string, args []interface{}) ([]*entities.Establishment, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query establishments", err)
	}
	defer rows.Close()

	out := []*entities.Establishment{}
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan establishment", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate establishments", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEstablishment(row rowScanner) (*entities.Establishment, error) {
	var (
		e                          entities.Establishment
		typ, sector                string
		city, neighborhood, street sql.NullString
		createdBy                  sql.NullString
		lat, lng                   sql.NullFloat64
	)
	err := row.Scan(
		&e.ID, &e.Name, &typ, &e.Province, &city, &neighborhood, &street,
		&lat, &lng, pq.Array(&e.Phones), &e.Open24_7, &e.CNAMGS, &e.CNSS, &sector,
		pq.Array(&e.Services), pq.Array(&e.Specialties), &e.IsActive, &createdBy,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = entities.ProviderType(typ)
	e.Sector = entities.Sector(sector)
	e.City, e.Neighborhood, e.Street = city.String, neighborhood.String, street.String
	e.CreatedBy = createdBy.String
	if lat.Valid && lng.Valid {
		e.Latitude, e.Longitude = &lat.Float64, &lng.Float64
	}
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
