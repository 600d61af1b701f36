package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncCustomer(t *testing.T) {
	t.Run("unknown number inserts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, first_name, last_name, company`).
			WithArgs("C300").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec(`INSERT INTO customers`).
			WithArgs("C300", sPtr("Jana"), sPtr("Ozola"), (*string)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		d, err := NewRefStore(mock).SyncCustomer(context.Background(), "C300", sPtr("Jana"), sPtr("Ozola"), nil)
		require.NoError(t, err)
		assert.Equal(t, DecisionInsert, d)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("changed company updates", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, first_name, last_name, company`).
			WithArgs("C100").
			WillReturnRows(pgxmock.NewRows([]string{"id", "first_name", "last_name", "company"}).
				AddRow(10, nil, nil, sPtr("Acme")))
		mock.ExpectExec(`UPDATE customers`).
			WithArgs(10, (*string)(nil), (*string)(nil), sPtr("Acme Logistics")).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		d, err := NewRefStore(mock).SyncCustomer(context.Background(), "C100", nil, nil, sPtr("Acme Logistics"))
		require.NoError(t, err)
		assert.Equal(t, DecisionUpdate, d)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged record is a noop", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, first_name, last_name, company`).
			WithArgs("C100").
			WillReturnRows(pgxmock.NewRows([]string{"id", "first_name", "last_name", "company"}).
				AddRow(10, nil, nil, sPtr("Acme")))

		d, err := NewRefStore(mock).SyncCustomer(context.Background(), "C100", nil, nil, sPtr("Acme"))
		require.NoError(t, err)
		assert.Equal(t, DecisionNoOp, d)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSyncContract(t *testing.T) {
	t.Run("missing customer defers the contract", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id FROM customers`).
			WithArgs("C999").
			WillReturnError(pgx.ErrNoRows)

		d, resolved, err := NewRefStore(mock).SyncContract(context.Background(), "K-55", "C999", nil)
		require.NoError(t, err)
		assert.Equal(t, DecisionNoOp, d)
		assert.False(t, resolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("new contract inserts once customer exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id FROM customers`).
			WithArgs("C100").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectQuery(`SELECT id, customers_id, description FROM contracts`).
			WithArgs("K-55").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec(`INSERT INTO contracts`).
			WithArgs("K-55", sPtr("Fleet base"), 10).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		d, resolved, err := NewRefStore(mock).SyncContract(context.Background(), "K-55", "C100", sPtr("Fleet base"))
		require.NoError(t, err)
		assert.Equal(t, DecisionInsert, d)
		assert.True(t, resolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reassigned contract updates", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id FROM customers`).
			WithArgs("C200").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(20))
		mock.ExpectQuery(`SELECT id, customers_id, description FROM contracts`).
			WithArgs("K-55").
			WillReturnRows(pgxmock.NewRows([]string{"id", "customers_id", "description"}).
				AddRow(80, 10, sPtr("Fleet base")))
		mock.ExpectExec(`UPDATE contracts`).
			WithArgs(80, sPtr("Fleet base"), 20).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		d, resolved, err := NewRefStore(mock).SyncContract(context.Background(), "K-55", "C200", sPtr("Fleet base"))
		require.NoError(t, err)
		assert.Equal(t, DecisionUpdate, d)
		assert.True(t, resolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("changed description updates", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id FROM customers`).
			WithArgs("C100").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectQuery(`SELECT id, customers_id, description FROM contracts`).
			WithArgs("K-55").
			WillReturnRows(pgxmock.NewRows([]string{"id", "customers_id", "description"}).
				AddRow(80, 10, sPtr("Fleet base")))
		mock.ExpectExec(`UPDATE contracts`).
			WithArgs(80, sPtr("Fleet base 2026"), 10).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		d, resolved, err := NewRefStore(mock).SyncContract(context.Background(), "K-55", "C100", sPtr("Fleet base 2026"))
		require.NoError(t, err)
		assert.Equal(t, DecisionUpdate, d)
		assert.True(t, resolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged contract is a noop", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id FROM customers`).
			WithArgs("C100").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectQuery(`SELECT id, customers_id, description FROM contracts`).
			WithArgs("K-55").
			WillReturnRows(pgxmock.NewRows([]string{"id", "customers_id", "description"}).
				AddRow(80, 10, sPtr("Fleet base")))

		d, resolved, err := NewRefStore(mock).SyncContract(context.Background(), "K-55", "C100", sPtr("Fleet base"))
		require.NoError(t, err)
		assert.Equal(t, DecisionNoOp, d)
		assert.True(t, resolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStagePendingCard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO cards_saas_pending`).
		WithArgs(sPtr("7000000001"), sPtr("700123"), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	staged, err := NewRefStore(mock).StagePendingCard(context.Background(), sPtr("7000000001"), sPtr("700123"), nil)
	require.NoError(t, err)
	assert.True(t, staged)

	// Already staged, the conflict clause swallows the insert.
	mock.ExpectExec(`INSERT INTO cards_saas_pending`).
		WithArgs(sPtr("7000000001"), sPtr("700123"), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	staged, err = NewRefStore(mock).StagePendingCard(context.Background(), sPtr("7000000001"), sPtr("700123"), nil)
	require.NoError(t, err)
	assert.False(t, staged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
