package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olibuijr/docvault/internal/common"
	"github.com/olibuijr/docvault/internal/logging"
)

// recordingSink captures every event in delivery order.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestStore(t *testing.T) (*Store, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	st := New(logging.Nop{}, WithEventSink(sink))
	return st, sink
}

func fields(kv ...any) *Object {
	o := NewObject()
	for i := 0; i < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1].(Value))
	}
	return o
}

func TestCreateCollection(t *testing.T) {
	st, sink := newTestStore(t)

	require.NoError(t, st.CreateCollection("orders"))
	require.ErrorIs(t, st.CreateCollection("orders"), common.ErrAlreadyExists)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventCollectionCreated, events[0].Kind)
	assert.Equal(t, "orders", events[0].Collection)
}

func TestDeleteCollection(t *testing.T) {
	st, sink := newTestStore(t)

	require.NoError(t, st.CreateCollection("orders"))
	require.NoError(t, st.DeleteCollection("orders"))
	require.ErrorIs(t, st.DeleteCollection("orders"), common.ErrNotFound)
	require.ErrorIs(t, st.DeleteCollection("never-existed"), common.ErrNotFound)

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventCollectionDeleted, events[1].Kind)
}

// The reserved set is protected regardless of store state, and a
// rejected delete has no side effects.
func TestDeleteCollection_ReservedLaw(t *testing.T) {
	st, sink := newTestStore(t)
	st.EnsureReserved()

	require.ErrorIs(t, st.DeleteCollection(UsersCollection), common.ErrReserved)
	require.ErrorIs(t, st.DeleteCollection(SettingsCollection), common.ErrReserved)

	// Even before the collections exist, the answer is Reserved, not
	// NotFound.
	empty := New(logging.Nop{})
	require.ErrorIs(t, empty.DeleteCollection(UsersCollection), common.ErrReserved)

	assert.Contains(t, st.ListCollections(), UsersCollection)
	assert.Contains(t, st.ListCollections(), SettingsCollection)
	assert.Empty(t, sink.all(), "a refused delete must not emit events")
}

func TestClearDocuments(t *testing.T) {
	st, sink := newTestStore(t)
	require.NoError(t, st.CreateCollection("orders"))

	d1, err := st.Insert("orders", fields("n", Int(1)))
	require.NoError(t, err)
	d2, err := st.Insert("orders", fields("n", Int(2)))
	require.NoError(t, err)

	require.NoError(t, st.ClearDocuments("orders"))

	docs, err := st.List("orders")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.ErrorIs(t, st.ClearDocuments(UsersCollection), common.ErrReserved)
	require.ErrorIs(t, st.ClearDocuments("missing"), common.ErrNotFound)

	var deleted []string
	for _, e := range sink.all() {
		if e.Kind == EventDocDeleted {
			deleted = append(deleted, e.DocumentID)
		}
	}
	assert.Equal(t, []string{d1.ID, d2.ID}, deleted)
}

func TestListCollections_InsertionOrderAndIndependence(t *testing.T) {
	st, _ := newTestStore(t)
	for _, name := range []string{"c3", "c1", "c2"} {
		require.NoError(t, st.CreateCollection(name))
	}

	first := st.ListCollections()
	assert.Equal(t, []string{"c3", "c1", "c2"}, first)

	first[0] = "mutated"
	assert.Equal(t, []string{"c3", "c1", "c2"}, st.ListCollections(),
		"each call must return an independent slice")
}

func TestInsert(t *testing.T) {
	st, sink := newTestStore(t)
	require.NoError(t, st.CreateCollection("orders"))

	doc, err := st.Insert("orders", fields("item", String("A"), "qty", Int(2)))
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	_, err = st.Insert("missing", NewObject())
	require.ErrorIs(t, err, common.ErrNotFound)

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventDocCreated, events[1].Kind)
	assert.Equal(t, doc.ID, events[1].DocumentID)
	require.NotNil(t, events[1].Doc)
}

func TestInsert_IDCollisionRetries(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("c"))

	ids := []string{"dup", "dup", "fresh"}
	st.newID = func() string {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}

	d1, err := st.Insert("c", NewObject())
	require.NoError(t, err)
	assert.Equal(t, "dup", d1.ID)

	d2, err := st.Insert("c", NewObject())
	require.NoError(t, err)
	assert.Equal(t, "fresh", d2.ID, "colliding ID must be regenerated")
}

func TestGet(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("orders"))

	doc, err := st.Insert("orders", fields("item", String("A")))
	require.NoError(t, err)

	got, err := st.Get("orders", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = st.Get("orders", "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = st.Get("missing", doc.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

// Returned documents are copies; mutating them must not leak into the
// store.
func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("c"))

	doc, err := st.Insert("c", fields("k", String("original")))
	require.NoError(t, err)

	got, err := st.Get("c", doc.ID)
	require.NoError(t, err)
	got.Fields.Set("k", String("mutated"))

	again, err := st.Get("c", doc.ID)
	require.NoError(t, err)
	v, _ := again.Fields.Get("k")
	s, _ := v.AsString()
	assert.Equal(t, "original", s)
}

func TestFindBy(t *testing.T) {
	st, _ := newTestStore(t)
	st.EnsureReserved()

	_, err := st.Insert(UsersCollection, fields("email", String("a@example.com")))
	require.NoError(t, err)
	want, err := st.Insert(UsersCollection, fields("email", String("b@example.com")))
	require.NoError(t, err)

	got, err := st.FindBy(UsersCollection, "email", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)

	_, err = st.FindBy(UsersCollection, "email", "nobody@example.com")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = st.FindBy("missing", "email", "x")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_InsertionOrder(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("c"))

	var want []string
	for i := 0; i < 5; i++ {
		d, err := st.Insert("c", fields("n", Int(int64(i))))
		require.NoError(t, err)
		want = append(want, d.ID)
	}

	docs, err := st.List("c")
	require.NoError(t, err)
	var got []string
	for _, d := range docs {
		got = append(got, d.ID)
	}
	assert.Equal(t, want, got)
}

func TestUpdate(t *testing.T) {
	st, sink := newTestStore(t)
	require.NoError(t, st.CreateCollection("orders"))

	doc, err := st.Insert("orders", fields("item", String("A"), "qty", Int(2)))
	require.NoError(t, err)

	updated, err := st.Update("orders", doc.ID, fields("item", String("A"), "qty", Int(5)))
	require.NoError(t, err)

	assert.Equal(t, doc.ID, updated.ID)
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)
	assert.Greater(t, updated.UpdatedAt, updated.CreatedAt)

	v, _ := updated.Fields.Get("qty")
	qty, _ := v.AsInt()
	assert.Equal(t, int64(5), qty)

	_, err = st.Update("orders", "nope", NewObject())
	require.ErrorIs(t, err, common.ErrNotFound)

	events := sink.all()
	assert.Equal(t, EventDocUpdated, events[len(events)-1].Kind)
}

// Even with a frozen clock, updated_at must advance past created_at.
func TestUpdate_MonotonicWithStalledClock(t *testing.T) {
	frozen := time.Now()
	st := New(logging.Nop{}, WithClock(func() time.Time { return frozen }))
	require.NoError(t, st.CreateCollection("c"))

	doc, err := st.Insert("c", NewObject())
	require.NoError(t, err)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	updated, err := st.Update("c", doc.ID, NewObject())
	require.NoError(t, err)
	assert.Greater(t, updated.UpdatedAt, updated.CreatedAt)
}

func TestDelete(t *testing.T) {
	st, sink := newTestStore(t)
	require.NoError(t, st.CreateCollection("orders"))

	doc, err := st.Insert("orders", NewObject())
	require.NoError(t, err)

	require.NoError(t, st.Delete("orders", doc.ID))
	_, err = st.Get("orders", doc.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, st.Delete("orders", doc.ID), common.ErrNotFound)
	require.ErrorIs(t, st.Delete("missing", "x"), common.ErrNotFound)

	events := sink.all()
	assert.Equal(t, EventDocDeleted, events[len(events)-1].Kind)
	assert.Equal(t, doc.ID, events[len(events)-1].DocumentID)
}

/// The end-to-end scenario: create, insert, update, delete, get.
func TestDocumentLifecycle(t *testing.T) {
	st, _ := newTestStore(t)

	require.NoError(t, st.CreateCollection("orders"))

	doc, err := st.Insert("orders", fields("item", String("A"), "qty", Int(2)))
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	updated, err := st.Update("orders", doc.ID, fields("item", String("A"), "qty", Int(5)))
	require.NoError(t, err)
	require.Equal(t, doc.ID, updated.ID)
	require.Greater(t, updated.UpdatedAt, updated.CreatedAt)

	require.NoError(t, st.Delete("orders", doc.ID))

	_, err = st.Get("orders", doc.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestInsert_ConcurrentNoLostWrites(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("c"))

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := st.Insert("c", fields("n", Int(int64(i))))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	docs, err := st.List("c")
	require.NoError(t, err)
	require.Len(t, docs, n)

	seen := make(map[string]struct{}, n)
	for _, d := range docs {
		seen[d.ID] = struct{}{}
	}
	assert.Len(t, seen, n, "all IDs must be distinct")
}

// Event payloads are copies taken under the lock, so a writer updating a
// freshly inserted document never races with (or leaks into) the
// doc.created payload. Run with the race detector.
func TestInsert_EventPayloadIsolatedFromConcurrentUpdates(t *testing.T) {
	st, sink := newTestStore(t)
	require.NoError(t, st.CreateCollection("c"))

	ids := make(chan string, 256)
	done := make(chan struct{})

	var writers sync.WaitGroup
	for i := 0; i < 4; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for j := 0; j < 50; j++ {
				doc, err := st.Insert("c", fields("qty", Int(0)))
				assert.NoError(t, err)
				ids <- doc.ID
			}
		}()
	}

	var updaters sync.WaitGroup
	for i := 0; i < 6; i++ {
		updaters.Add(1)
		go func() {
			defer updaters.Done()
			for {
				select {
				case id := <-ids:
					_, err := st.Update("c", id, fields("qty", Int(1)))
					assert.NoError(t, err)
				case <-done:
					return
				}
			}
		}()
	}

	writers.Wait()
	close(done)
	updaters.Wait()

	for _, ev := range sink.all() {
		if ev.Kind != EventDocCreated {
			continue
		}
		require.NotNil(t, ev.Doc)
		assert.Equal(t, ev.Doc.CreatedAt, ev.Doc.UpdatedAt,
			"doc.created must carry the document as inserted, not a later state")
		qty, _ := ev.Doc.Fields.Get("qty")
		n, ok := qty.AsInt()
		require.True(t, ok)
		assert.Zero(t, n)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("orders"))
	_, err := st.Insert("orders", fields("item", String("A")))
	require.NoError(t, err)
	st.EnsureReserved()

	snap := st.Snapshot()

	other := New(logging.Nop{})
	other.Restore(snap)

	assert.Equal(t, st.ListCollections(), other.ListCollections())
	a, err := st.List("orders")
	require.NoError(t, err)
	b, err := other.List("orders")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// A snapshot is a point-in-time copy; later mutations must not show
// through.
func TestSnapshot_Isolation(t *testing.T) {
	st, _ := newTestStore(t)
	require.NoError(t, st.CreateCollection("c"))
	doc, err := st.Insert("c", fields("k", String("v1")))
	require.NoError(t, err)

	snap := st.Snapshot()

	_, err = st.Update("c", doc.ID, fields("k", String("v2")))
	require.NoError(t, err)

	v, _ := snap.Collections[0].Documents[0].Fields.Get("k")
	s, _ := v.AsString()
	assert.Equal(t, "v1", s)
}

func TestEnsureReserved_Idempotent(t *testing.T) {
	st, _ := newTestStore(t)
	st.EnsureReserved()
	st.EnsureReserved()

	names := st.ListCollections()
	assert.Equal(t, []string{UsersCollection, SettingsCollection}, names)
}

// Secrets never reach subscribers: user documents are published with the
// password field stripped.
func TestEvents_UserPasswordRedacted(t *testing.T) {
	st, sink := newTestStore(t)
	st.EnsureReserved()

	doc, err := st.Insert(UsersCollection, fields(
		"email", String("a@example.com"),
		"password", String("pbkdf2-hash"),
	))
	require.NoError(t, err)

	// The store itself keeps the field.
	got, err := st.Get(UsersCollection, doc.ID)
	require.NoError(t, err)
	_, ok := got.Fields.Get("password")
	assert.True(t, ok)

	events := sink.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.NotNil(t, last.Doc)
	_, ok = last.Doc.Fields.Get("password")
	assert.False(t, ok, "event payload must not carry the password")
	_, ok = last.Doc.Fields.Get("email")
	assert.True(t, ok)
}

// A panicking subscriber must not fail the mutation.
func TestEvents_SinkPanicIsolated(t *testing.T) {
	st := New(logging.Nop{}, WithEventSink(panickySink{}))
	require.NoError(t, st.CreateCollection("c"))

	doc, err := st.Insert("c", NewObject())
	require.NoError(t, err)

	_, err = st.Get("c", doc.ID)
	require.NoError(t, err, "mutation must have committed despite the panic")
}

type panickySink struct{}

func (panickySink) Notify(Event) { panic("subscriber exploded") }

func TestCommitHook_CalledPerMutation(t *testing.T) {
	var calls int
	st := New(logging.Nop{}, WithCommitHook(func() { calls++ }))

	require.NoError(t, st.CreateCollection("c"))
	doc, err := st.Insert("c", NewObject())
	require.NoError(t, err)
	_, err = st.Update("c", doc.ID, NewObject())
	require.NoError(t, err)
	require.NoError(t, st.Delete("c", doc.ID))

	// Reads do not schedule flushes.
	_, _ = st.List("c")
	_ = st.ListCollections()

	assert.Equal(t, 4, calls)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("users"))
	assert.True(t, IsReserved("settings"))
	assert.False(t, IsReserved("orders"))
	assert.False(t, IsReserved(""))
}

func ExampleStore_Insert() {
	st := New(logging.Nop{})
	_ = st.CreateCollection("orders")

	f := NewObject()
	f.Set("item", String("A"))
	doc, _ := st.Insert("orders", f)

	fmt.Println(doc.CreatedAt == doc.UpdatedAt)
	// Output: true
}
