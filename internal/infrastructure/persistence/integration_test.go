//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
)

// newPostgresDatabase starts a PostgreSQL container and applies the
// embedded migrations to it.
func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("crm_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("crm_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := Open(postgres.Open(dsn), "postgres")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgres_MigrationsMatchRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := newPostgresDatabase(t)
	ctx := context.Background()

	require.NoError(t, CheckSchema(ctx, db.DB, crm.Catalog()))

	// AutoMigrate must find nothing to add on top of the migrations
	require.NoError(t, AutoMigrate(ctx, db.DB, crm.Catalog()))
	var constraints int64
	require.NoError(t, db.DB.Raw(`
		SELECT count(*) FROM information_schema.table_constraints
		WHERE table_schema = current_schema() AND constraint_type = 'FOREIGN KEY'
	`).Scan(&constraints).Error)
	assert.Equal(t, int64(len(crm.Catalog().Relationships())), constraints)
}

func TestPostgres_Store(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := newPostgresDatabase(t)
	store, err := NewStore(db.DB, crm.Catalog())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("customer without a balance fails", func(t *testing.T) {
		_, err := store.Create(ctx, crm.Customer, schema.Record{"name": "Acme"})
		assert.True(t, errors.Is(err, shared.ErrRequiredField))
	})

	t.Run("campaign lead round trip", func(t *testing.T) {
		campaign, err := store.Create(ctx, crm.Campaign, springSale())
		require.NoError(t, err)
		lead, err := store.Create(ctx, crm.Lead, schema.Record{"name": "J. Doe", "interest_level": 3})
		require.NoError(t, err)
		_, err = store.Link(ctx, crm.Campaign, campaign.GetID(), "Leads", lead.GetID(), nil)
		require.NoError(t, err)

		leads, err := store.Related(ctx, crm.Campaign, campaign.GetID(), "Leads")
		require.NoError(t, err)
		assert.Equal(t, []string{"J. Doe"}, names(leads))

		campaigns, err := store.Related(ctx, crm.Lead, lead.GetID(), "Campaigns")
		require.NoError(t, err)
		assert.Equal(t, []string{"Spring Sale"}, names(campaigns))
	})

	t.Run("product with two suppliers", func(t *testing.T) {
		product, err := store.Create(ctx, crm.Product, schema.Record{"name": "P", "price": "9.95"})
		require.NoError(t, err)
		for _, name := range []string{"S1", "S2"} {
			supplier, err := store.Create(ctx, crm.Supplier, schema.Record{"name": name})
			require.NoError(t, err)
			_, err = store.Link(ctx, crm.Supplier, supplier.GetID(), "Products", product.GetID(), nil)
			require.NoError(t, err)
		}

		suppliers, err := store.Related(ctx, crm.Product, product.GetID(), "Suppliers")
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S2"}, names(suppliers))
	})

	t.Run("database rejects a dangling order", func(t *testing.T) {
		err := db.DB.Create(&models.OrderModel{CustomerID: 424242, Status: "new"}).Error
		assert.True(t, errors.Is(TranslateError(err), shared.ErrConstraintViolation))
	})

	t.Run("restrict survives a direct delete", func(t *testing.T) {
		customer, err := store.Create(ctx, crm.Customer, schema.Record{"name": "Acme", "balance": 1})
		require.NoError(t, err)
		_, err = store.Create(ctx, crm.Order, schema.Record{"customer_id": customer.GetID(), "status": "new"})
		require.NoError(t, err)

		err = db.DB.Delete(&models.CustomerModel{}, customer.GetID()).Error
		assert.True(t, errors.Is(TranslateError(err), shared.ErrConstraintViolation))

		err = store.Delete(ctx, crm.Customer, customer.GetID())
		assert.True(t, errors.Is(err, shared.ErrReferenced))
	})
}
