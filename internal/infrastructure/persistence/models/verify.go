package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/schema"
	gormschema "gorm.io/gorm/schema"
)

// Verify parses every bound model with GORM and checks it against the
// registry: table names, primary keys, column nullability and size, and the
// has-many / belongs-to fields behind each relationship. All mismatches are
// reported together.
func Verify(reg *schema.Registry) error {
	cache := &sync.Map{}
	var errs []error

	for _, e := range reg.Entities() {
		b, ok := For(e.Name)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no persistence model", e.Name))
			continue
		}
		s, err := gormschema.Parse(b.New(), cache, gormschema.NamingStrategy{})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: parse model: %w", e.Name, err))
			continue
		}
		errs = append(errs, verifyEntity(reg, e, b, s)...)
	}

	return errors.Join(errs...)
}

func verifyEntity(reg *schema.Registry, e schema.Entity, b Binding, s *gormschema.Schema) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(e.Name+": "+format, args...))
	}

	if s.Table != e.Table {
		fail("model table %q, want %q", s.Table, e.Table)
	}
	if s.PrioritizedPrimaryField == nil || s.PrioritizedPrimaryField.DBName != e.PrimaryKey {
		fail("model primary key does not match %q", e.PrimaryKey)
	}

	for _, f := range e.Fields {
		col := s.LookUpField(f.Name)
		if col == nil || col.DBName != f.Name {
			fail("missing column %q", f.Name)
			continue
		}
		if col.NotNull != f.Required {
			fail("column %q not null = %t, want %t", f.Name, col.NotNull, f.Required)
		}
		if f.Type == schema.FieldString && col.Size != f.Size {
			fail("column %q size %d, want %d", f.Name, col.Size, f.Size)
		}
	}

	for _, rel := range reg.ChildRelationships(e.Name) {
		r, ok := s.Relationships.Relations[GoName(rel.Collection)]
		if !ok || r.Type != gormschema.HasMany {
			fail("missing has-many field %s for %s", GoName(rel.Collection), rel.Name)
			continue
		}
		child, _ := reg.Entity(rel.Child)
		if r.FieldSchema.Table != child.Table {
			fail("%s points at %q, want %q", r.Name, r.FieldSchema.Table, child.Table)
		}
		if len(r.References) != 1 || r.References[0].ForeignKey.DBName != rel.ForeignKey {
			fail("%s foreign key does not match %q", r.Name, rel.ForeignKey)
		}
		c := r.ParseConstraint()
		if c == nil || !strings.EqualFold(c.OnDelete, string(rel.OnDelete)) {
			fail("%s on delete does not match %s", r.Name, rel.OnDelete)
		}
	}

	for _, rel := range reg.ParentRelationships(e.Name) {
		r, ok := s.Relationships.Relations[GoName(rel.BackReference)]
		if !ok || r.Type != gormschema.BelongsTo {
			fail("missing belongs-to field %s for %s", GoName(rel.BackReference), rel.Name)
			continue
		}
		parent, _ := reg.Entity(rel.Parent)
		if r.FieldSchema.Table != parent.Table {
			fail("%s points at %q, want %q", r.Name, r.FieldSchema.Table, parent.Table)
		}
	}

	if e.HasCapability(schema.CapabilityIdentity) {
		if _, ok := b.New().(crm.Principal); !ok {
			fail("model does not implement the identity capability")
		}
	}

	return errs
}

// GoName converts a registry name such as "campaign" or "contact_name" to
// the exported Go field name GORM sees. Names already in Go form pass through.
func GoName(name string) string {
	var sb strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		if part == "id" {
			sb.WriteString("ID")
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		sb.WriteString(string(r))
	}
	return sb.String()
}

var constraintCache sync.Map

// ConstraintName returns the name GORM derives for the foreign key behind rel
func ConstraintName(rel schema.Relationship) (string, error) {
	b, ok := For(rel.Parent)
	if !ok {
		return "", fmt.Errorf("%s: no persistence model", rel.Parent)
	}
	s, err := gormschema.Parse(b.New(), &constraintCache, gormschema.NamingStrategy{})
	if err != nil {
		return "", fmt.Errorf("%s: parse model: %w", rel.Parent, err)
	}
	r, ok := s.Relationships.Relations[GoName(rel.Collection)]
	if !ok {
		return "", fmt.Errorf("%s: no relationship field %s", rel.Parent, GoName(rel.Collection))
	}
	c := r.ParseConstraint()
	if c == nil {
		return "", fmt.Errorf("%s.%s: no foreign key constraint", rel.Parent, GoName(rel.Collection))
	}
	return c.Name, nil
}
