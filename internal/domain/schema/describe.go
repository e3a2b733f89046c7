package schema

// Catalog is a serialisable description of a Registry for external consumers
// such as an API layer generating collection and relationship endpoints.
type Catalog struct {
	Entities      []EntityDescriptor `json:"entities" yaml:"entities"`
	Relationships []Relationship     `json:"relationships" yaml:"relationships"`
	ManyToMany    []ManyToMany       `json:"many_to_many" yaml:"many_to_many"`
}

// EntityDescriptor is an entity together with its navigations
type EntityDescriptor struct {
	Entity      `yaml:",inline"`
	Navigations []Navigation `json:"navigations" yaml:"navigations"`
}

// Describe returns the catalog in declaration order
func (r *Registry) Describe() Catalog {
	c := Catalog{
		Entities:      make([]EntityDescriptor, 0, len(r.entities)),
		Relationships: r.Relationships(),
		ManyToMany:    make([]ManyToMany, 0, len(r.manyToMany)),
	}
	for _, e := range r.entities {
		c.Entities = append(c.Entities, EntityDescriptor{
			Entity:      e.clone(),
			Navigations: r.Navigations(e.Name),
		})
	}
	for _, m := range r.manyToMany {
		c.ManyToMany = append(c.ManyToMany, *m)
	}
	return c
}
