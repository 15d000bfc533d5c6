package store

// Document is one record in a collection. The ID is assigned by the store
// and never changes; CreatedAt is set once at insertion and UpdatedAt is
// refreshed on every successful mutation (unix nanoseconds).
type Document struct {
	ID        string
	CreatedAt int64
	UpdatedAt int64
	Fields    *Object
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	return &Document{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Fields:    d.Fields.Clone(),
	}
}

// Snapshot is a complete point-in-time copy of the store contents, taken
// under the store lock with all documents deep-copied. It is what the
// codec serializes and what Restore loads.
type Snapshot struct {
	Collections []CollectionSnapshot
}

// CollectionSnapshot is one collection inside a Snapshot, documents in
// insertion order.
type CollectionSnapshot struct {
	Name      string
	Documents []*Document
}
