package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Builder collects declarations and turns them into a validated Registry
type Builder struct {
	entities      []Entity
	relationships []Relationship
	manyToMany    []ManyToMany
}

// NewBuilder creates an empty Builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Entity declares an entity. A missing primary key defaults to "id".
func (b *Builder) Entity(e Entity) *Builder {
	if e.PrimaryKey == "" {
		e.PrimaryKey = DefaultPrimaryKey
	}
	b.entities = append(b.entities, e.clone())
	return b
}

// Relationship declares a bidirectional one-to-many link
func (b *Builder) Relationship(r Relationship) *Builder {
	b.relationships = append(b.relationships, r)
	return b
}

// ManyToMany declares a many-to-many link through a junction entity
func (b *Builder) ManyToMany(m ManyToMany) *Builder {
	b.manyToMany = append(b.manyToMany, m)
	return b
}

// Build validates every declaration and returns the immutable Registry.
// All problems are reported together; the error wraps shared.ErrInvalidSchema.
func (b *Builder) Build() (*Registry, error) {
	c := &checker{
		reg: &Registry{
			byName:       make(map[string]*Entity, len(b.entities)),
			byTable:      make(map[string]*Entity, len(b.entities)),
			byCollection: make(map[string]*Entity, len(b.entities)),
			relByName:    make(map[string]*Relationship, len(b.relationships)),
			navigations:  make(map[string]map[string]Navigation, len(b.entities)),
		},
		validate: newDeclarationValidator(),
	}

	c.entities(b.entities)
	c.relationships(b.relationships)
	c.referenceCoverage()
	c.manyToManys(b.manyToMany)
	c.dependencyOrder()

	if len(c.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidSchema, errors.Join(c.errs...))
	}
	return c.reg, nil
}

// newDeclarationValidator returns a validator aware of the declaration tags
func newDeclarationValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("deletepolicy", func(fl validator.FieldLevel) bool {
		switch DeletePolicy(fl.Field().String()) {
		case Restrict, Cascade, SetNull:
			return true
		}
		return false
	})
	return v
}

type checker struct {
	reg      *Registry
	validate *validator.Validate
	errs     []error
}

func (c *checker) fail(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func (c *checker) structErrors(kind, name string, v any) bool {
	err := c.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.fail("%s %q: %v", kind, name, err)
		return false
	}
	for _, fe := range verrs {
		c.fail("%s %q: %s failed %q", kind, name, fe.Namespace(), fe.Tag())
	}
	return false
}

// claim reserves a navigation or attribute name on an entity
func (c *checker) claim(entity, name, what string) bool {
	navs := c.reg.navigations[entity]
	if _, taken := navs[name]; taken {
		c.fail("entity %q: %s %q collides with an existing navigation", entity, what, name)
		return false
	}
	e := c.reg.byName[entity]
	if name == e.PrimaryKey {
		c.fail("entity %q: %s %q collides with the primary key", entity, what, name)
		return false
	}
	if _, ok := e.Field(name); ok {
		c.fail("entity %q: %s %q collides with a field", entity, what, name)
		return false
	}
	return true
}

func (c *checker) entities(decls []Entity) {
	for i := range decls {
		e := decls[i]
		if !c.structErrors("entity", e.Name, e) {
			continue
		}
		if _, dup := c.reg.byName[e.Name]; dup {
			c.fail("entity %q declared twice", e.Name)
			continue
		}
		if other, dup := c.reg.byTable[e.Table]; dup {
			c.fail("entity %q: table %q already mapped by %q", e.Name, e.Table, other.Name)
			continue
		}
		if other, dup := c.reg.byCollection[e.Collection]; dup {
			c.fail("entity %q: collection %q already used by %q", e.Name, e.Collection, other.Name)
			continue
		}

		seen := make(map[string]bool, len(e.Fields))
		for _, f := range e.Fields {
			if seen[f.Name] {
				c.fail("entity %q: field %q declared twice", e.Name, f.Name)
			}
			seen[f.Name] = true
			if f.Name == e.PrimaryKey {
				c.fail("entity %q: field %q shadows the primary key", e.Name, f.Name)
			}
			if !f.IsReference() && f.References != "" {
				c.fail("entity %q: field %q references %q but is not a reference field", e.Name, f.Name, f.References)
			}
			if f.Size > 0 && f.Type != FieldString {
				c.fail("entity %q: field %q has a size but is not a string field", e.Name, f.Name)
			}
		}

		stored := &e
		c.reg.entities = append(c.reg.entities, stored)
		c.reg.byName[e.Name] = stored
		c.reg.byTable[e.Table] = stored
		c.reg.byCollection[e.Collection] = stored
		c.reg.navigations[e.Name] = make(map[string]Navigation)
	}

	// Reference targets can only be checked once every entity is known.
	for _, e := range c.reg.entities {
		required := 0
		for _, f := range e.ReferenceFields() {
			if _, ok := c.reg.byName[f.References]; !ok {
				c.fail("entity %q: field %q references undeclared entity %q", e.Name, f.Name, f.References)
			}
			if f.Required {
				required++
			}
		}
		if e.Junction && required < 2 {
			c.fail("junction entity %q needs at least two required reference fields, has %d", e.Name, required)
		}
	}
}

func (c *checker) relationships(decls []Relationship) {
	for i := range decls {
		r := decls[i]
		if !c.structErrors("relationship", r.Name, r) {
			continue
		}
		if _, dup := c.reg.relByName[r.Name]; dup {
			c.fail("relationship %q declared twice", r.Name)
			continue
		}
		parent, ok := c.reg.byName[r.Parent]
		if !ok {
			c.fail("relationship %q: parent entity %q is not declared", r.Name, r.Parent)
			continue
		}
		child, ok := c.reg.byName[r.Child]
		if !ok {
			c.fail("relationship %q: child entity %q is not declared", r.Name, r.Child)
			continue
		}
		fk, ok := child.Field(r.ForeignKey)
		if !ok {
			c.fail("relationship %q: foreign key %q is not a field of %q", r.Name, r.ForeignKey, r.Child)
			continue
		}
		if !fk.IsReference() || fk.References != r.Parent {
			c.fail("relationship %q: field %s.%s does not reference %q", r.Name, r.Child, r.ForeignKey, r.Parent)
			continue
		}
		if r.OnDelete == SetNull && fk.Required {
			c.fail("relationship %q: SET NULL on required foreign key %s.%s", r.Name, r.Child, r.ForeignKey)
			continue
		}
		if !c.claim(parent.Name, r.Collection, "collection") || !c.claim(child.Name, r.BackReference, "back-reference") {
			continue
		}

		stored := &r
		c.reg.relationships = append(c.reg.relationships, stored)
		c.reg.relByName[r.Name] = stored
		c.reg.navigations[parent.Name][r.Collection] = Navigation{
			Entity:       parent.Name,
			Name:         r.Collection,
			Kind:         ToMany,
			Target:       child.Name,
			Relationship: r,
			Inverse:      r.BackReference,
		}
		c.reg.navigations[child.Name][r.BackReference] = Navigation{
			Entity:       child.Name,
			Name:         r.BackReference,
			Kind:         ToOne,
			Target:       parent.Name,
			Relationship: r,
			Inverse:      r.Collection,
		}
	}
}

// referenceCoverage checks that every foreign key is wired by exactly one relationship
func (c *checker) referenceCoverage() {
	covered := make(map[string]int)
	for _, r := range c.reg.relationships {
		covered[r.Child+"."+r.ForeignKey]++
	}
	for _, e := range c.reg.entities {
		for _, f := range e.ReferenceFields() {
			switch n := covered[e.Name+"."+f.Name]; {
			case n == 0:
				c.fail("entity %q: reference field %q has no relationship", e.Name, f.Name)
			case n > 1:
				c.fail("entity %q: reference field %q is wired by %d relationships", e.Name, f.Name, n)
			}
		}
	}
}

func (c *checker) manyToManys(decls []ManyToMany) {
	names := make(map[string]bool, len(decls))
	for i := range decls {
		m := decls[i]
		if !c.structErrors("many-to-many", m.Name, m) {
			continue
		}
		if names[m.Name] {
			c.fail("many-to-many %q declared twice", m.Name)
			continue
		}
		names[m.Name] = true

		through, ok := c.reg.byName[m.Through]
		if !ok {
			c.fail("many-to-many %q: junction entity %q is not declared", m.Name, m.Through)
			continue
		}
		if !through.Junction {
			c.fail("many-to-many %q: entity %q is not a junction", m.Name, m.Through)
			continue
		}
		left, lok := c.junctionLink(m, m.Left)
		right, rok := c.junctionLink(m, m.Right)
		if !lok || !rok {
			continue
		}
		if !c.claim(m.Left, m.LeftCollection, "collection") || !c.claim(m.Right, m.RightCollection, "collection") {
			continue
		}

		stored := &m
		c.reg.manyToMany = append(c.reg.manyToMany, stored)
		c.reg.navigations[m.Left][m.LeftCollection] = Navigation{
			Entity:  m.Left,
			Name:    m.LeftCollection,
			Kind:    ManyToManyKind,
			Target:  m.Right,
			Through: m.Through,
			Near:    left,
			Far:     right,
			Inverse: m.RightCollection,
		}
		c.reg.navigations[m.Right][m.RightCollection] = Navigation{
			Entity:  m.Right,
			Name:    m.RightCollection,
			Kind:    ManyToManyKind,
			Target:  m.Left,
			Through: m.Through,
			Near:    right,
			Far:     left,
			Inverse: m.LeftCollection,
		}
	}
}

// junctionLink finds the single relationship tying the junction to side
func (c *checker) junctionLink(m ManyToMany, side string) (Relationship, bool) {
	if _, ok := c.reg.byName[side]; !ok {
		c.fail("many-to-many %q: entity %q is not declared", m.Name, side)
		return Relationship{}, false
	}
	var found []*Relationship
	for _, r := range c.reg.relationships {
		if r.Child == m.Through && r.Parent == side {
			found = append(found, r)
		}
	}
	if len(found) != 1 {
		c.fail("many-to-many %q: junction %q has %d relationships to %q, want 1", m.Name, m.Through, len(found), side)
		return Relationship{}, false
	}
	return *found[0], true
}

// dependencyOrder sorts entities so that parents precede their children.
// Ties keep declaration order. Self references do not constrain the order.
func (c *checker) dependencyOrder() {
	indegree := make(map[string]int, len(c.reg.entities))
	children := make(map[string][]string)
	for _, r := range c.reg.relationships {
		if r.Parent == r.Child {
			continue
		}
		indegree[r.Child]++
		children[r.Parent] = append(children[r.Parent], r.Child)
	}

	order := make([]string, 0, len(c.reg.entities))
	done := make(map[string]bool, len(c.reg.entities))
	for len(order) < len(c.reg.entities) {
		progressed := false
		for _, e := range c.reg.entities {
			if done[e.Name] || indegree[e.Name] > 0 {
				continue
			}
			done[e.Name] = true
			order = append(order, e.Name)
			for _, child := range children[e.Name] {
				indegree[child]--
			}
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, e := range c.reg.entities {
				if !done[e.Name] {
					stuck = append(stuck, e.Name)
				}
			}
			c.fail("relationship cycle between entities %v", stuck)
			return
		}
	}
	c.reg.order = order
}
