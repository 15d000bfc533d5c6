package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olibuijr/docvault/internal/common"
	"github.com/olibuijr/docvault/internal/logging"
)

// Reserved collection names. They are created implicitly at startup and
// can never be deleted or cleared.
const (
	UsersCollection    = "users"
	SettingsCollection = "settings"
)

var reservedCollections = map[string]struct{}{
	UsersCollection:    {},
	SettingsCollection: {},
}

// IsReserved reports whether name belongs to the protected set.
func IsReserved(name string) bool {
	_, ok := reservedCollections[name]
	return ok
}

// collection holds documents in insertion order.
type collection struct {
	order []string
	docs  map[string]*Document
}

func newCollection() *collection {
	return &collection{docs: make(map[string]*Document)}
}

// Store is the in-memory document store. One RWMutex guards the whole
// snapshot, so every mutation is linearized and readers never observe a
// partially applied change. No method performs I/O; persistence is the
// sync controller's job, signalled through the commit hook.
type Store struct {
	mu          sync.RWMutex
	order       []string
	collections map[string]*collection

	sink     EventSink
	onCommit func()
	logger   logging.Logger

	// Test seams.
	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithEventSink wires the subscriber that receives lifecycle events.
func WithEventSink(s EventSink) Option {
	return func(st *Store) { st.sink = s }
}

// WithCommitHook wires the function called after every committed
// mutation, outside the store lock. The sync controller uses it to
// schedule flushes.
func WithCommitHook(fn func()) Option {
	return func(st *Store) { st.onCommit = fn }
}

func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

func New(logger logging.Logger, opts ...Option) *Store {
	st := &Store{
		collections: make(map[string]*collection),
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(st)
	}
	return st
}

// EnsureReserved creates the reserved collections if they are absent.
// Called on startup after a restore (or on a fresh store); emits no
// events.
func (st *Store) EnsureReserved() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, name := range []string{UsersCollection, SettingsCollection} {
		if _, ok := st.collections[name]; !ok {
			st.collections[name] = newCollection()
			st.order = append(st.order, name)
		}
	}
}

// CreateCollection adds an empty collection. It fails with
// common.ErrAlreadyExists if the name is taken.
func (st *Store) CreateCollection(name string) error {
	st.mu.Lock()
	if _, ok := st.collections[name]; ok {
		st.mu.Unlock()
		return fmt.Errorf("collection %q: %w", name, common.ErrAlreadyExists)
	}
	st.collections[name] = newCollection()
	st.order = append(st.order, name)
	at := st.now().UnixNano()
	st.mu.Unlock()

	st.commit(Event{Kind: EventCollectionCreated, Collection: name, At: at})
	return nil
}

// DeleteCollection removes a collection and everything in it. Reserved
// names fail with common.ErrReserved before any other check; missing
// names fail with common.ErrNotFound.
func (st *Store) DeleteCollection(name string) error {
	if IsReserved(name) {
		return fmt.Errorf("collection %q: %w", name, common.ErrReserved)
	}

	st.mu.Lock()
	if _, ok := st.collections[name]; !ok {
		st.mu.Unlock()
		return fmt.Errorf("collection %q: %w", name, common.ErrNotFound)
	}
	delete(st.collections, name)
	for i, n := range st.order {
		if n == name {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	at := st.now().UnixNano()
	st.mu.Unlock()

	st.commit(Event{Kind: EventCollectionDeleted, Collection: name, At: at})
	return nil
}

// ClearDocuments removes every document from a collection but keeps the
// collection itself. Reserved collections cannot be cleared.
func (st *Store) ClearDocuments(name string) error {
	if IsReserved(name) {
		return fmt.Errorf("collection %q: %w", name, common.ErrReserved)
	}

	st.mu.Lock()
	col, ok := st.collections[name]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("collection %q: %w", name, common.ErrNotFound)
	}
	deleted := col.order
	col.order = nil
	col.docs = make(map[string]*Document)
	at := st.now().UnixNano()
	st.mu.Unlock()

	for _, id := range deleted {
		st.emit(Event{Kind: EventDocDeleted, Collection: name, DocumentID: id, At: at})
	}
	if st.onCommit != nil {
		st.onCommit()
	}
	return nil
}

// ListCollections returns the collection names in insertion order. Each
// call produces an independent fresh slice.
func (st *Store) ListCollections() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, len(st.order))
	copy(out, st.order)
	return out
}

// Insert adds a document with a store-assigned ID and both timestamps
// set to now. The returned document is a copy owned by the caller.
func (st *Store) Insert(collection string, fields *Object) (*Document, error) {
	st.mu.Lock()
	col, ok := st.collections[collection]
	if !ok {
		st.mu.Unlock()
		return nil, fmt.Errorf("collection %q: %w", collection, common.ErrNotFound)
	}

	id := st.newID()
	for {
		if _, taken := col.docs[id]; !taken {
			break
		}
		id = st.newID()
	}

	at := st.now().UnixNano()
	doc := &Document{ID: id, CreatedAt: at, UpdatedAt: at, Fields: fields.Clone()}
	col.docs[id] = doc
	col.order = append(col.order, id)
	// Copies for the caller and the event are taken under the lock; the
	// stored document must not be read once another writer can reach it.
	out := doc.Clone()
	st.mu.Unlock()

	st.commit(Event{
		Kind:       EventDocCreated,
		Collection: collection,
		DocumentID: id,
		Doc:        redactedClone(collection, out),
		At:         at,
	})
	return out, nil
}

// Get returns a copy of one document.
func (st *Store) Get(collection, id string) (*Document, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	col, ok := st.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, common.ErrNotFound)
	}
	doc, ok := col.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, common.ErrNotFound)
	}
	return doc.Clone(), nil
}

// FindBy returns the first document (in insertion order) whose top-level
// field equals the given string value.
func (st *Store) FindBy(collection, field, value string) (*Document, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	col, ok := st.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, common.ErrNotFound)
	}
	for _, id := range col.order {
		if v, ok := col.docs[id].Fields.Get(field); ok {
			if s, ok := v.AsString(); ok && s == value {
				return col.docs[id].Clone(), nil
			}
		}
	}
	return nil, fmt.Errorf("%s=%q: %w", field, value, common.ErrNotFound)
}

// List returns copies of all documents in insertion order.
func (st *Store) List(collection string) ([]*Document, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	col, ok := st.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collection, common.ErrNotFound)
	}
	out := make([]*Document, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, col.docs[id].Clone())
	}
	return out, nil
}

// Update replaces a document's value tree. ID and CreatedAt are
// preserved, UpdatedAt is refreshed. The failed path leaves the document
// untouched.
func (st *Store) Update(collection, id string, fields *Object) (*Document, error) {
	st.mu.Lock()
	col, ok := st.collections[collection]
	if !ok {
		st.mu.Unlock()
		return nil, fmt.Errorf("collection %q: %w", collection, common.ErrNotFound)
	}
	doc, ok := col.docs[id]
	if !ok {
		st.mu.Unlock()
		return nil, fmt.Errorf("document %q: %w", id, common.ErrNotFound)
	}
	at := st.now().UnixNano()
	if at <= doc.UpdatedAt {
		// Clock went backwards or stalled; keep updated_at monotonic.
		at = doc.UpdatedAt + 1
	}
	doc.Fields = fields.Clone()
	doc.UpdatedAt = at
	out := doc.Clone()
	st.mu.Unlock()

	st.commit(Event{
		Kind:       EventDocUpdated,
		Collection: collection,
		DocumentID: id,
		Doc:        redactedClone(collection, out),
		At:         at,
	})
	return out, nil
}

// Delete removes a document entirely; there are no tombstones.
func (st *Store) Delete(collection, id string) error {
	st.mu.Lock()
	col, ok := st.collections[collection]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("collection %q: %w", collection, common.ErrNotFound)
	}
	if _, ok := col.docs[id]; !ok {
		st.mu.Unlock()
		return fmt.Errorf("document %q: %w", id, common.ErrNotFound)
	}
	delete(col.docs, id)
	for i, d := range col.order {
		if d == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	at := st.now().UnixNano()
	st.mu.Unlock()

	st.commit(Event{Kind: EventDocDeleted, Collection: collection, DocumentID: id, At: at})
	return nil
}

// Snapshot returns a deep point-in-time copy of all collections in
// insertion order. Safe to call concurrently with mutations; the copy is
// taken under the read lock and is never torn.
func (st *Store) Snapshot() *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	snap := &Snapshot{Collections: make([]CollectionSnapshot, 0, len(st.order))}
	for _, name := range st.order {
		col := st.collections[name]
		cs := CollectionSnapshot{Name: name, Documents: make([]*Document, 0, len(col.order))}
		for _, id := range col.order {
			cs.Documents = append(cs.Documents, col.docs[id].Clone())
		}
		snap.Collections = append(snap.Collections, cs)
	}
	return snap
}

// Restore replaces the entire store contents with a decoded snapshot.
// Used once at startup, before any collaborator holds a reference; emits
// no events.
func (st *Store) Restore(snap *Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.order = nil
	st.collections = make(map[string]*collection)
	for _, cs := range snap.Collections {
		col := newCollection()
		for _, doc := range cs.Documents {
			col.docs[doc.ID] = doc.Clone()
			col.order = append(col.order, doc.ID)
		}
		st.collections[cs.Name] = col
		st.order = append(st.order, cs.Name)
	}
}

// commit emits one event and signals the flush hook, both outside the
// store lock.
func (st *Store) commit(e Event) {
	st.emit(e)
	if st.onCommit != nil {
		st.onCommit()
	}
}

// emit delivers one event to the sink, isolating panics so delivery can
// never affect the mutation that already committed.
func (st *Store) emit(e Event) {
	if st.sink == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil && st.logger != nil {
			st.logger.Error(context.Background(), "event subscriber panicked",
				"kind", e.Kind, "collection", e.Collection, "panic", fmt.Sprint(p))
		}
	}()
	st.sink.Notify(e)
}
