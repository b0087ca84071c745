// internal/docstore/docstore.go
//
// Generic document store abstraction the game core coordinates through.
// Models the small slice of a replicated document database the clients
// actually rely on:
//   - Point reads/writes, partial field merges, and atomic field increments.
//   - Idempotent deletes.
//   - One-shot filtered/ordered collection queries.
//   - Live subscriptions on a single document or on a collection query,
//     delivering a snapshot on every observed change until disposed.
//
// Guarantees are intentionally weak: per-document last-write-wins, snapshots
// at-least-once and in per-watcher order, nothing transactional across
// documents. The only atomic primitive is Increment.

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document does not exist.
// Callers generally treat it as "not yet" rather than fatal.
var ErrNotFound = errors.New("docstore: document not found")

// Doc is a JSON-shaped document. Values are normalized through JSON encoding
// on every write, so readers only ever see the JSON type set
// (float64, string, bool, []any, map[string]any, nil).
type Doc map[string]any

// Snapshot pairs a document with its ID, as returned by queries.
type Snapshot struct {
	ID   string
	Data Doc
}

// Query describes a single-field equality filter with optional ordering
// and a result limit. The zero value matches a whole collection.
type Query struct {
	Field   string // equality filter field; empty means match all
	Equals  any
	OrderBy string // sort field; empty means unspecified order
	Desc    bool
	Limit   int // 0 means unlimited
}

// Store is the persistence and subscription interface the core runs on.
// Backends: in-process memory (development, tests) and SQLite (durable,
// single writer process).
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Set writes the full document, creating or overwriting it.
	Set(ctx context.Context, collection, id string, doc Doc) error

	// Merge updates only the given fields of an existing document.
	// Returns ErrNotFound if the document does not exist.
	Merge(ctx context.Context, collection, id string, fields Doc) error

	// Increment atomically adds delta to a numeric field of an existing
	// document. A missing field counts as zero. Never read-modify-write:
	// concurrent increments from two clients must both land.
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	// Delete removes the document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Query runs a one-shot read over a collection.
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)

	// Watch subscribes to one document. fn receives the current state
	// immediately if the document exists, then once per change. It is never
	// invoked for a missing or deleted document. The returned func disposes
	// the subscription and is safe to call more than once.
	Watch(collection, id string, fn func(Doc)) (cancel func(), err error)

	// WatchQuery subscribes to a collection query. fn receives the full
	// recomputed result set immediately and after every change in the
	// collection. The returned func disposes the subscription.
	WatchQuery(collection string, q Query, fn func([]Snapshot)) (cancel func(), err error)
}

// Now is the timestamp representation used in documents: epoch milliseconds.
// Timestamps are client-assigned; cross-client ordering is best effort.
func Now() int64 { return time.Now().UnixMilli() }

// Encode converts any JSON-marshalable value into a normalized Doc.
func Encode(v any) (Doc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	return d, nil
}

// Decode unmarshals a Doc into a typed value.
func Decode(d Doc, v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("docstore: decode: %w", err)
	}
	return nil
}

// normalize runs a document through JSON so both backends store and deliver
// the exact same value types.
func normalize(d Doc) (Doc, error) {
	return Encode(d)
}

// cloneDoc deep-copies a normalized document so watchers and readers never
// alias store-internal state.
func cloneDoc(d Doc) Doc {
	out, _ := Encode(d)
	return out
}
