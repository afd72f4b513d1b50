package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/cartosante/pkg/errors"
)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewFromDB(db), mock
}

var establishmentColumnNames = []string{
	"id", "name", "type", "province", "city", "neighborhood", "street",
	"latitude", "longitude", "phones", "open_24_7", "cnamgs", "cnss", "sector",
	"services", "specialties", "is_active", "created_by", "created_at", "updated_at",
}

func TestEstablishmentAdapter_Create(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewEstablishmentAdapter(client)

	lat, lng := 0.41, 9.45
	now := time.Now().UTC()
	e := &entities.Establishment{
		ID: "e1", Name: "Clinique El Rapha", Type: entities.ProviderTypeClinic,
		Province: "Estuaire", City: "Libreville", Latitude: &lat, Longitude: &lng,
		Phones: []string{"+241 01 44 00 00"}, Sector: entities.SectorPrivate,
		IsActive: true, CreatedBy: "admin-1", CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "establishments"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, adapter.Create(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEstablishmentAdapter_CreateDuplicate(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewEstablishmentAdapter(client)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "establishments"`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := adapter.Create(context.Background(), &entities.Establishment{ID: "e1", Name: "X"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestEstablishmentAdapter_GetByID(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewEstablishmentAdapter(client)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(establishmentColumnNames).AddRow(
		"e1", "Pharmacie du Glass", "pharmacy", "Estuaire", "Libreville", nil, "Boulevard de l'Indépendance",
		0.392, 9.442, `{"+241 01 72 00 00","+241 06 00 00 00"}`, true, true, false, "private",
		`{}`, `{"Pédiatrie"}`, true, nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "establishments" WHERE ("id" = 'e1')`)).WillReturnRows(rows)

	e, err := adapter.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, entities.ProviderTypePharmacy, e.Type)
	assert.Equal(t, "", e.Neighborhood)
	assert.Equal(t, []string{"+241 01 72 00 00", "+241 06 00 00 00"}, e.Phones)
	assert.Equal(t, []string{"Pédiatrie"}, e.Specialties)
	require.NotNil(t, e.Latitude)
	assert.InDelta(t, 0.392, *e.Latitude, 1e-9)
	assert.True(t, e.Open24_7)
	assert.Equal(t, entities.SectorPrivate, e.Sector)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEstablishmentAdapter_GetByIDNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectQuery(`FROM "establishments"`).WillReturnRows(sqlmock.NewRows(establishmentColumnNames))

	_, err := NewEstablishmentAdapter(client).GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEstablishmentAdapter_GetByIDsEmpty(t *testing.T) {
	client, mock := newMockClient(t)

	out, err := NewEstablishmentAdapter(client).GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEstablishmentAdapter_ListFilters(t *testing.T) {
	client, mock := newMockClient(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(establishmentColumnNames).
		AddRow("e1", "A", "clinic", "Estuaire", nil, nil, nil, nil, nil, `{}`, false, false, false, "public", `{}`, `{}`, true, "admin-1", now, now).
		AddRow("e2", "B", "hospital", "Estuaire", "Owendo", nil, nil, nil, nil, `{}`, true, false, true, "public", `{"Scanner"}`, `{}`, true, nil, now, now)
	mock.ExpectQuery(`FROM "establishments" WHERE .*"province" = 'Estuaire'.*"is_active" IS TRUE.*ORDER BY "name" ASC, "id" ASC LIMIT 50`).
		WillReturnRows(rows)

	active := true
	out, err := NewEstablishmentAdapter(client).List(context.Background(), entities.EstablishmentFilter{
		Province: "Estuaire", IsActive: &active, Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].Latitude)
	assert.Equal(t, "admin-1", out[0].CreatedBy)
	assert.Equal(t, []string{"Scanner"}, out[1].Services)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEstablishmentAdapter_UpdateNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "establishments"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewEstablishmentAdapter(client).Update(context.Background(), &entities.Establishment{ID: "ghost", Name: "X"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEstablishmentAdapter_Deactivate(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectExec(`UPDATE "establishments" SET .*"is_active".*FALSE.*WHERE \("id" = 'e1'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewEstablishmentAdapter(client).Deactivate(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
