package schema

// DeletePolicy says what happens to child rows when their parent is deleted
type DeletePolicy string

// Delete policies
const (
	Restrict DeletePolicy = "RESTRICT"
	Cascade  DeletePolicy = "CASCADE"
	SetNull  DeletePolicy = "SET NULL"
)

// Relationship is a bidirectional one-to-many link, declared once.
//
// The parent exposes the children under Collection; each child exposes its
// parent under BackReference. ForeignKey is the reference field on the child.
type Relationship struct {
	Name          string       `json:"name" yaml:"name" validate:"required,identifier"`
	Parent        string       `json:"parent" yaml:"parent" validate:"required"`
	Child         string       `json:"child" yaml:"child" validate:"required"`
	ForeignKey    string       `json:"foreign_key" yaml:"foreign_key" validate:"required,identifier"`
	Collection    string       `json:"collection" yaml:"collection" validate:"required"`
	BackReference string       `json:"back_reference" yaml:"back_reference" validate:"required"`
	OnDelete      DeletePolicy `json:"on_delete" yaml:"on_delete" validate:"required,deletepolicy"`
}

// ManyToMany routes a many-to-many link through an explicit junction entity.
// The junction must hold one relationship to Left and one to Right.
type ManyToMany struct {
	Name            string `json:"name" yaml:"name" validate:"required,identifier"`
	Left            string `json:"left" yaml:"left" validate:"required"`
	Right           string `json:"right" yaml:"right" validate:"required"`
	Through         string `json:"through" yaml:"through" validate:"required"`
	LeftCollection  string `json:"left_collection" yaml:"left_collection" validate:"required"`
	RightCollection string `json:"right_collection" yaml:"right_collection" validate:"required"`
}

// NavigationKind classifies how a navigation is resolved
type NavigationKind string

// Navigation kinds
const (
	ToMany         NavigationKind = "to-many"
	ToOne          NavigationKind = "to-one"
	ManyToManyKind NavigationKind = "many-to-many"
)

// Navigation is a named path from an entity to related records.
//
// For ToMany and ToOne, Relationship is the declared link. For
// ManyToManyKind, Near links the junction to Entity and Far links the
// junction to Target. Inverse names the navigation on Target that walks back.
type Navigation struct {
	Entity       string         `json:"entity" yaml:"entity"`
	Name         string         `json:"name" yaml:"name"`
	Kind         NavigationKind `json:"kind" yaml:"kind"`
	Target       string         `json:"target" yaml:"target"`
	Relationship Relationship   `json:"-" yaml:"-"`
	Through      string         `json:"through,omitempty" yaml:"through,omitempty"`
	Near         Relationship   `json:"-" yaml:"-"`
	Far          Relationship   `json:"-" yaml:"-"`
	Inverse      string         `json:"inverse" yaml:"inverse"`
}
