package store

// Event kinds published after a mutation commits.
const (
	EventDocCreated        = "doc.created"
	EventDocUpdated        = "doc.updated"
	EventDocDeleted        = "doc.deleted"
	EventCollectionCreated = "collection.created"
	EventCollectionDeleted = "collection.deleted"
)

// Event is one lifecycle notification. DocumentID and Doc are empty for
// collection-level events; Doc is a redacted copy for doc.created and
// doc.updated and nil for doc.deleted. At is unix nanoseconds.
type Event struct {
	Kind       string
	Collection string
	DocumentID string
	Doc        *Document
	At         int64
}

// EventSink receives events from the store. Delivery is synchronous and
// best-effort: the store isolates sink panics so a broken subscriber can
// never fail the mutation that produced the event.
type EventSink interface {
	Notify(Event)
}

// Fields of reserved documents that are stripped from event payloads so
// secrets never reach the realtime broadcaster.
var redactedFields = map[string][]string{
	UsersCollection: {"password"},
}

// redactedClone deep-copies doc, dropping redacted fields for the given
// collection.
func redactedClone(collection string, doc *Document) *Document {
	c := doc.Clone()
	for _, f := range redactedFields[collection] {
		c.Fields.Delete(f)
	}
	return c
}
