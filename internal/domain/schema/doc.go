// Package schema is a static catalog of entity types, their fields and the
// relationships between them.
//
// A Registry is assembled with a Builder. Build validates every declaration at
// once: field shapes, foreign keys, and the symmetry of each relationship
// (parent collection on one side, back-reference on the other). Once built the
// Registry is immutable and may be shared by any number of goroutines.
//
// The registry does not talk to a database. Persistence layers consume it to
// validate records (ValidateRecord), to decide how to resolve a navigation
// (Navigate) and to apply delete policies (ChildRelationships).
package schema
