package shared

// Entity is the base interface for all persisted records.
// Every record is keyed by an auto-incrementing integer.
type Entity interface {
	GetID() int64
}
