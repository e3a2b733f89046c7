package models

import (
	"sort"
	"time"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseModel provides the auto-increment primary key shared by all models.
type BaseModel struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`
}

// GetID returns the primary key
func (m *BaseModel) GetID() int64 {
	return m.ID
}

// Model is implemented by every persistence model bound to a registry entity.
// Attributes and Assign use the normalized value types produced by
// schema.Registry.ValidateRecord.
type Model interface {
	shared.Entity
	TableName() string
	EntityName() string
	Attributes() schema.Record
	Assign(rec schema.Record)
}

// Binding connects a registry entity to its persistence model
type Binding struct {
	Entity string
	// New returns a zero model
	New func() Model
	// Find runs the query on tx into a slice of the bound model
	Find func(tx *gorm.DB) ([]Model, error)
}

func bind[T any, PT interface {
	*T
	Model
}](entity string) Binding {
	return Binding{
		Entity: entity,
		New: func() Model {
			return PT(new(T))
		},
		Find: func(tx *gorm.DB) ([]Model, error) {
			var rows []T
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			out := make([]Model, len(rows))
			for i := range rows {
				out[i] = PT(&rows[i])
			}
			return out, nil
		},
	}
}

var bindings = map[string]Binding{}

func register(b Binding) {
	bindings[b.Entity] = b
}

// For returns the binding for an entity name
func For(entity string) (Binding, bool) {
	b, ok := bindings[entity]
	return b, ok
}

// Bound returns the names of every bound entity, sorted
func Bound() []string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asOptString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func asDecimal(v any) decimal.Decimal {
	d, _ := v.(decimal.Decimal)
	return d
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asOptTime(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func optTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
