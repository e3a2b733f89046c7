package persistence

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables of every entity in reg, parents
// before children, after checking the models still match the registry.
// Versioned SQL migrations are the production path; this serves sqlite and
// development databases.
func AutoMigrate(ctx context.Context, db *gorm.DB, reg *schema.Registry) error {
	if err := models.Verify(reg); err != nil {
		return fmt.Errorf("models do not match the registry: %w", err)
	}

	tx := db.WithContext(ctx)
	for _, name := range reg.DependencyOrder() {
		b, ok := models.For(name)
		if !ok {
			return fmt.Errorf("no model bound to entity %s", name)
		}
		if err := tx.AutoMigrate(b.New()); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", name, err)
		}
	}
	return nil
}
