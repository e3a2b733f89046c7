package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/crm/backend/internal/domain/shared"
)

// Registry is the validated, read-only catalog produced by Builder.Build.
// Accessors return copies so callers cannot alter the catalog.
type Registry struct {
	entities      []*Entity
	byName        map[string]*Entity
	byTable       map[string]*Entity
	byCollection  map[string]*Entity
	relationships []*Relationship
	relByName     map[string]*Relationship
	manyToMany    []*ManyToMany
	navigations   map[string]map[string]Navigation
	order         []string
}

// Entity returns the entity declared under name
func (r *Registry) Entity(name string) (Entity, bool) {
	e, ok := r.byName[name]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// MustEntity returns the entity declared under name or an error wrapping shared.ErrUnknownEntity
func (r *Registry) MustEntity(name string) (Entity, error) {
	e, ok := r.Entity(name)
	if !ok {
		return Entity{}, fmt.Errorf("%w: %q", shared.ErrUnknownEntity, name)
	}
	return e, nil
}

// EntityByTable returns the entity mapped to table
func (r *Registry) EntityByTable(table string) (Entity, bool) {
	e, ok := r.byTable[table]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// EntityByCollection returns the entity exposed under collection
func (r *Registry) EntityByCollection(collection string) (Entity, bool) {
	e, ok := r.byCollection[collection]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// Entities returns every entity in declaration order
func (r *Registry) Entities() []Entity {
	out := make([]Entity, len(r.entities))
	for i, e := range r.entities {
		out[i] = e.clone()
	}
	return out
}

// EntityNames returns every entity name in declaration order
func (r *Registry) EntityNames() []string {
	out := make([]string, len(r.entities))
	for i, e := range r.entities {
		out[i] = e.Name
	}
	return out
}

// DependencyOrder returns entity names with every parent before its children
func (r *Registry) DependencyOrder() []string {
	return slices.Clone(r.order)
}

// Relationships returns every one-to-many relationship in declaration order
func (r *Registry) Relationships() []Relationship {
	out := make([]Relationship, len(r.relationships))
	for i, rel := range r.relationships {
		out[i] = *rel
	}
	return out
}

// Relationship returns the relationship declared under name
func (r *Registry) Relationship(name string) (Relationship, bool) {
	rel, ok := r.relByName[name]
	if !ok {
		return Relationship{}, false
	}
	return *rel, true
}

// ChildRelationships returns the relationships in which entity is the parent
func (r *Registry) ChildRelationships(entity string) []Relationship {
	var out []Relationship
	for _, rel := range r.relationships {
		if rel.Parent == entity {
			out = append(out, *rel)
		}
	}
	return out
}

// ParentRelationships returns the relationships in which entity is the child
func (r *Registry) ParentRelationships(entity string) []Relationship {
	var out []Relationship
	for _, rel := range r.relationships {
		if rel.Child == entity {
			out = append(out, *rel)
		}
	}
	return out
}

// ManyToManys returns the many-to-many links that entity takes part in,
// either as a side or as the junction
func (r *Registry) ManyToManys(entity string) []ManyToMany {
	var out []ManyToMany
	for _, m := range r.manyToMany {
		if m.Left == entity || m.Right == entity || m.Through == entity {
			out = append(out, *m)
		}
	}
	return out
}

// Navigate resolves a navigation name declared on entity
func (r *Registry) Navigate(entity, name string) (Navigation, error) {
	navs, ok := r.navigations[entity]
	if !ok {
		return Navigation{}, fmt.Errorf("%w: %q", shared.ErrUnknownEntity, entity)
	}
	nav, ok := navs[name]
	if !ok {
		return Navigation{}, fmt.Errorf("%w: %s.%s", shared.ErrUnknownNavigation, entity, name)
	}
	return nav, nil
}

// Navigations returns the navigations declared on entity sorted by name
func (r *Registry) Navigations(entity string) []Navigation {
	navs := r.navigations[entity]
	out := make([]Navigation, 0, len(navs))
	for _, nav := range navs {
		out = append(out, nav)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasCapability reports whether the capability is composed onto entity
func (r *Registry) HasCapability(entity string, c Capability) bool {
	e, ok := r.byName[entity]
	return ok && e.HasCapability(c)
}

// SortableColumns returns the columns a listing of entity may be ordered by
func (r *Registry) SortableColumns(entity string) map[string]bool {
	e, ok := r.byName[entity]
	if !ok {
		return nil
	}
	cols := map[string]bool{e.PrimaryKey: true}
	for _, f := range e.Fields {
		if f.Type != FieldText {
			cols[f.Name] = true
		}
	}
	return cols
}
