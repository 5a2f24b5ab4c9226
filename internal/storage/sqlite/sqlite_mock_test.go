package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/meterbill/internal/models"
)

// newMockStore creates a SQLiteStore over a mocked SQL connection.
func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return &SQLiteStore{db: mockDB}, mock
}

func TestSQLiteStore_PersistenceFailures(t *testing.T) {
	ioErr := errors.New("disk I/O error")
	ctx := context.Background()

	t.Run("list customers query failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT id, name, address, meterNumber, createdAt\s+FROM customers`).
			WillReturnError(ioErr)

		customers, err := store.ListCustomers(ctx)

		assert.Nil(t, customers)
		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.ErrorIs(t, err, ioErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert bill exec failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO bills`).WillReturnError(ioErr)

		err := store.InsertBill(ctx, testBill("b1", "c1", 0, 10, time.Now()))

		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.NotErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation becomes validation error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO customers`).
			WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: customers.meterNumber (2067)"))

		err := store.InsertCustomer(ctx, testCustomer("c1", "Amal", "M1"))

		var vErr *models.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "meterNumber", vErr.Field)
	})

	t.Run("zero affected rows is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE bills SET isPaid = 1 WHERE id = \?`).
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.SetBillPaid(ctx, "missing")

		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NotErrorIs(t, err, models.ErrPersistence)
	})

	t.Run("remove customer bills failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`DELETE FROM bills WHERE customerId = \?`).
			WithArgs("c1").
			WillReturnError(ioErr)

		err := store.RemoveBillsForCustomer(ctx, "c1")

		assert.ErrorIs(t, err, models.ErrPersistence)
	})

	t.Run("read settings failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT kwRate, companyName, systemName, logo FROM settings`).
			WillReturnError(ioErr)

		_, err := store.ReadSettings(ctx)

		assert.ErrorIs(t, err, models.ErrPersistence)
	})

	t.Run("missing settings row is not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT kwRate, companyName, systemName, logo FROM settings`).
			WillReturnError(sql.ErrNoRows)

		_, err := store.ReadSettings(ctx)

		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("replace all rolls back on failure", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM bills`).WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`DELETE FROM customers`).WillReturnError(ioErr)
		mock.ExpectRollback()

		err := store.ReplaceAll(ctx, models.Snapshot{Settings: models.DefaultSettings()})

		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
