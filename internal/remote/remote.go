// Package remote defines the contract this client expects from the remote
// document store: durable storage with server-assigned identifiers and
// timestamps, ordered range queries, and per-query change subscriptions that
// deliver an initial snapshot followed by incremental events.
package remote

import "context"

// Doc is one stored document.
type Doc struct {
	ID     string
	Fields map[string]any
}

// ServerTimestamp is the sentinel value replaced by the store's own clock at
// write time. Collection order follows these timestamps; clients never write
// their local clock into ordered fields.
type serverTimestamp struct{}

var ServerTimestamp = serverTimestamp{}

// Filter is a single field predicate. Supported ops: "==", "!=",
// "array-contains".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query describes an ordered range query over one collection. Collection
// paths may be nested, e.g. "chats/<id>/messages". StartAfter is an exclusive
// cursor on the OrderBy field.
type Query struct {
	Path       string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	StartAfter any
}

// ChangeKind classifies one incremental event.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

// Change is one per-document event within a subscribed query window.
// NewIndex is the document's position in the window after the change, in
// query order; index 0 in a descending query is the newest document.
type Change struct {
	Kind     ChangeKind
	Doc      Doc
	NewIndex int
}

// Snapshot is one delivery to a subscriber: the full window in query order
// plus the changes since the previous delivery. Initial is true exactly once
// per subscription, before any incremental delivery.
type Snapshot struct {
	Docs    []Doc
	Changes []Change
	Initial bool
}

// CancelFunc detaches a subscription. Safe to call more than once.
type CancelFunc func()

// Store is the remote document store boundary. Implementations deliver
// subscription callbacks asynchronously but in order per subscription, with
// the initial snapshot strictly before any incremental one.
type Store interface {
	// Get reads a single document. Returns ok=false when absent.
	Get(ctx context.Context, path, id string) (Doc, bool, error)

	// Query runs an ordered range query.
	Query(ctx context.Context, q Query) ([]Doc, error)

	// Create stores a new document under a server-assigned id and returns it.
	Create(ctx context.Context, path string, fields map[string]any) (string, error)

	// Set stores a document under a caller-chosen id, replacing any previous
	// contents.
	Set(ctx context.Context, path, id string, fields map[string]any) error

	// Update merges fields into an existing document.
	Update(ctx context.Context, path, id string, fields map[string]any) error

	// Subscribe watches a query and streams snapshots to fn until cancelled.
	Subscribe(q Query, fn func(Snapshot)) (CancelFunc, error)

	// SubscribeDoc watches a single document.
	SubscribeDoc(path, id string, fn func(Doc)) (CancelFunc, error)
}
