package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockStore builds a store over the postgres dialector backed by sqlmock
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	store, err := NewStore(gormDB, crm.Catalog())
	require.NoError(t, err)
	return store, mock
}

func TestStoreSQL_Get(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "customers" WHERE id = \$1 ORDER BY .* LIMIT .*`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance"}).AddRow(7, "Acme", "120.50"))

	m, err := store.Get(context.Background(), crm.Customer, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.GetID())
	assert.Equal(t, "Acme", m.Attributes()["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSQL_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "leads" WHERE id = \$1`).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), crm.Lead, 3)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSQL_Create_ChecksReferencesInTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "customers" WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "orders" .* RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(31))
	mock.ExpectCommit()

	m, err := store.Create(context.Background(), crm.Order, schema.Record{"customer_id": 9, "status": "new"})
	require.NoError(t, err)
	assert.Equal(t, int64(31), m.GetID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSQL_Delete_RestrictRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "customers" WHERE id = \$1`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance"}).AddRow(7, "Acme", "0"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE customer_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := store.Delete(context.Background(), crm.Customer, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrReferenced))
	assert.Contains(t, err.Error(), "Customer 7 still has 2 Order record(s)")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSQL_Related_UsesJunctionSubquery(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WithArgs(5, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price"}).AddRow(5, "P", "19.99"))
	mock.ExpectQuery(`SELECT \* FROM "suppliers" WHERE id IN \(SELECT .*supplier_id.* FROM "product_suppliers" WHERE product_id = \$1\) ORDER BY .*id`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "S1").AddRow(2, "S2"))

	suppliers, err := store.Related(context.Background(), crm.Product, 5, "Suppliers")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, names(suppliers))
	assert.NoError(t, mock.ExpectationsWereMet())
}
