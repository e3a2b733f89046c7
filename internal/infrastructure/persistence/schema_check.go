package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// CheckSchema compares the live database against the registry: every table,
// column and foreign key constraint must exist. It reports all gaps at once.
func CheckSchema(ctx context.Context, db *gorm.DB, reg *schema.Registry) error {
	migrator := db.WithContext(ctx).Migrator()
	var errs []error

	for _, name := range reg.DependencyOrder() {
		e, b, err := bound(reg, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		model := b.New()
		if !migrator.HasTable(model) {
			errs = append(errs, fmt.Errorf("%s: table %q is missing", name, e.Table))
			continue
		}
		for _, column := range append([]string{e.PrimaryKey}, e.FieldNames()...) {
			if !migrator.HasColumn(model, column) {
				errs = append(errs, fmt.Errorf("%s: column %s.%s is missing", name, e.Table, column))
			}
		}
	}

	for _, rel := range reg.Relationships() {
		_, b, err := bound(reg, rel.Parent)
		if err != nil {
			continue
		}
		constraint, err := models.ConstraintName(rel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !migrator.HasConstraint(b.New(), constraint) {
			errs = append(errs, fmt.Errorf("relationship %s: foreign key %s is missing", rel.Name, constraint))
		}
	}

	return errors.Join(errs...)
}

func bound(reg *schema.Registry, name string) (schema.Entity, models.Binding, error) {
	e, err := reg.MustEntity(name)
	if err != nil {
		return e, models.Binding{}, err
	}
	b, ok := models.For(name)
	if !ok {
		return e, b, fmt.Errorf("%s: no model bound", name)
	}
	return e, b, nil
}
