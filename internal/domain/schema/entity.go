package schema

import "slices"

// Capability is a behaviour composed onto an entity rather than inherited
type Capability string

// CapabilityIdentity marks an entity whose records can act as an authenticated principal
const CapabilityIdentity Capability = "identity"

// DefaultPrimaryKey is the column name used when an entity declares none
const DefaultPrimaryKey = "id"

// Entity declares a modeled table.
//
// Collection is the resource name an API layer exposes the entity under.
// Junction marks an associative entity that resolves a many-to-many
// relationship through its reference fields.
type Entity struct {
	Name         string       `json:"name" yaml:"name" validate:"required"`
	Table        string       `json:"table" yaml:"table" validate:"required,identifier"`
	Collection   string       `json:"collection" yaml:"collection" validate:"required"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	PrimaryKey   string       `json:"primary_key" yaml:"primary_key" validate:"omitempty,identifier"`
	Junction     bool         `json:"junction,omitempty" yaml:"junction,omitempty"`
	Fields       []Field      `json:"fields" yaml:"fields" validate:"required,min=1,dive"`
	Capabilities []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty" validate:"dive,oneof=identity"`
}

// Field returns the named field
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declaration order, without the primary key
func (e Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the names of the non-nullable fields
func (e Entity) RequiredFields() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// ReferenceFields returns the foreign key fields
func (e Entity) ReferenceFields() []Field {
	var refs []Field
	for _, f := range e.Fields {
		if f.IsReference() {
			refs = append(refs, f)
		}
	}
	return refs
}

// HasCapability reports whether the capability is composed onto the entity
func (e Entity) HasCapability(c Capability) bool {
	return slices.Contains(e.Capabilities, c)
}

func (e Entity) clone() Entity {
	e.Fields = slices.Clone(e.Fields)
	e.Capabilities = slices.Clone(e.Capabilities)
	return e
}
