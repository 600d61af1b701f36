package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentLookupPrefersMap(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT card_pan, trans_number, employee_number`).
		WillReturnRows(pgxmock.NewRows([]string{
			"card_pan", "trans_number", "employee_number", "employee_name", "license_plate",
		}).AddRow("7001234567=", 1234, sPtr("D-7"), sPtr("Ivo Bērziņš"), sPtr("LV-1234")))

	s := NewEnrichmentStore(mock)
	require.NoError(t, s.LoadMap(context.Background()))

	// Map keys strip the track separator, lookups match either form.
	e, err := s.Lookup(context.Background(), sPtr("7001234567"), 1234)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Ivo Bērziņš", *e.EmployeeName)
	assert.Equal(t, "LV-1234", *e.LicensePlate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrichmentLookupFallsBackToCards(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT card_pan, trans_number, employee_number`).
		WillReturnRows(pgxmock.NewRows([]string{
			"card_pan", "trans_number", "employee_number", "employee_name", "license_plate",
		}))
	mock.ExpectQuery(`FROM cards c`).
		WithArgs("7005550001").
		WillReturnRows(pgxmock.NewRows([]string{"number", "name", "vehicle_id", "license_plate"}).
			AddRow(sPtr("D-9"), sPtr("Jana Ozola"), intP(90), sPtr("LV-9876")))

	s := NewEnrichmentStore(mock)
	require.NoError(t, s.LoadMap(context.Background()))

	e, err := s.Lookup(context.Background(), sPtr("7005550001="), 55)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "D-9", *e.EmployeeNumber)
	assert.Equal(t, 90, *e.VehicleID)

	// Second lookup for the same PAN is served from the cache.
	e2, err := s.Lookup(context.Background(), sPtr("7005550001"), 56)
	require.NoError(t, err)
	assert.Equal(t, e, e2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrichmentLookupUnknownPAN(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT card_pan, trans_number, employee_number`).
		WillReturnRows(pgxmock.NewRows([]string{
			"card_pan", "trans_number", "employee_number", "employee_name", "license_plate",
		}))
	mock.ExpectQuery(`FROM cards c`).
		WithArgs("7000000000").
		WillReturnError(pgx.ErrNoRows)

	s := NewEnrichmentStore(mock)
	require.NoError(t, s.LoadMap(context.Background()))

	e, err := s.Lookup(context.Background(), sPtr("7000000000"), 1)
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = s.Lookup(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveArticleID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewEnrichmentStore(mock)

	mock.ExpectQuery(`SELECT articles_id FROM article_map_from_payments`).
		WithArgs(sPtr("D"), sPtr("Diesel"), dec("21")).
		WillReturnRows(pgxmock.NewRows([]string{"articles_id"}).AddRow(12))

	id, ok, err := s.ResolveArticleID(context.Background(), sPtr("D"), sPtr("Diesel"), dec("21"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12, id)

	mock.ExpectQuery(`SELECT articles_id FROM article_map_from_payments`).
		WithArgs((*string)(nil), sPtr("AdBlue"), dec("21")).
		WillReturnError(pgx.ErrNoRows)

	_, ok, err = s.ResolveArticleID(context.Background(), nil, sPtr("AdBlue"), dec("21"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func intP(i int) *int { return &i }
