package schema

// FieldType is the semantic type of an entity attribute
type FieldType string

// Field types
const (
	FieldInteger   FieldType = "integer"
	FieldString    FieldType = "string"
	FieldText      FieldType = "text"
	FieldDecimal   FieldType = "decimal"
	FieldDateTime  FieldType = "datetime"
	FieldReference FieldType = "reference"
)

// Field declares a single attribute of an entity.
// Size bounds string fields in characters; zero means unbounded.
// References names the target entity of a reference field.
type Field struct {
	Name       string    `json:"name" yaml:"name" validate:"required,identifier"`
	Type       FieldType `json:"type" yaml:"type" validate:"required,oneof=integer string text decimal datetime reference"`
	Required   bool      `json:"required" yaml:"required"`
	Size       int       `json:"size,omitempty" yaml:"size,omitempty" validate:"gte=0"`
	References string    `json:"references,omitempty" yaml:"references,omitempty" validate:"required_if=Type reference"`
}

// IsReference reports whether the field is a foreign key
func (f Field) IsReference() bool {
	return f.Type == FieldReference
}

// Convenience constructors used by catalog declarations.

// String declares a bounded string field
func String(name string, size int, required bool) Field {
	return Field{Name: name, Type: FieldString, Size: size, Required: required}
}

// Text declares an unbounded text field
func Text(name string, required bool) Field {
	return Field{Name: name, Type: FieldText, Required: required}
}

// Integer declares an integer field
func Integer(name string, required bool) Field {
	return Field{Name: name, Type: FieldInteger, Required: required}
}

// Decimal declares a decimal (money/amount) field
func Decimal(name string, required bool) Field {
	return Field{Name: name, Type: FieldDecimal, Required: required}
}

// DateTime declares a timestamp field
func DateTime(name string, required bool) Field {
	return Field{Name: name, Type: FieldDateTime, Required: required}
}

// Reference declares a foreign key to the named entity
func Reference(name, target string, required bool) Field {
	return Field{Name: name, Type: FieldReference, References: target, Required: required}
}
