// internal/docstore/memory.go
//
// In-memory Store implementation. The default backend for development and
// tests: state lives in a two-level map guarded by a mutex, subscriptions
// run through the shared hub, and everything is lost on process restart.
//
// Stored documents are copy-on-write: a document value is never mutated in
// place after it lands in the map, so snapshots can alias it safely until
// they are cloned at the delivery boundary.

package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type Memory struct {
	mu   sync.Mutex
	cols map[string]map[string]Doc
	hub  *hub
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cols: make(map[string]map[string]Doc), hub: newHub()}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, doc Doc) error {
	nd, err := normalize(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cols[collection] == nil {
		m.cols[collection] = make(map[string]Doc)
	}
	m.cols[collection][id] = nd
	m.notifyLocked(collection, id, nd)
	return nil
}

func (m *Memory) Merge(ctx context.Context, collection, id string, fields Doc) error {
	nf, err := normalize(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	next := make(Doc, len(cur)+len(nf))
	for k, v := range cur {
		next[k] = v
	}
	for k, v := range nf {
		next[k] = v
	}
	m.cols[collection][id] = next
	m.notifyLocked(collection, id, next)
	return nil
}

func (m *Memory) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	next := make(Doc, len(cur))
	for k, v := range cur {
		next[k] = v
	}
	prev, _ := next[field].(float64) // missing field counts as zero
	next[field] = prev + float64(delta)
	m.cols[collection][id] = next
	m.notifyLocked(collection, id, next)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cols[collection][id]; !ok {
		return nil
	}
	delete(m.cols[collection], id)
	m.notifyLocked(collection, id, nil)
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return runQuery(m.cols[collection], q), nil
}

func (m *Memory) Watch(collection, id string, fn func(Doc)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, cancel := m.hub.addDocWatcher(collection, id, fn)
	// Initial snapshot, enqueued under the store lock so no change can slip
	// in ahead of it.
	if cur, ok := m.cols[collection][id]; ok {
		w.enqueue(cloneDoc(cur))
	}
	return cancel, nil
}

func (m *Memory) WatchQuery(collection string, q Query, fn func([]Snapshot)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, cancel := m.hub.addQueryWatcher(collection, q, fn)
	w.enqueue(runQuery(m.cols[collection], q))
	return cancel, nil
}

// notifyLocked fans out a mutation. Caller holds m.mu, which also gives all
// watchers a single consistent ordering of states.
func (m *Memory) notifyLocked(collection, id string, doc Doc) {
	col := m.cols[collection]
	m.hub.docChanged(collection, id, doc, func(q Query) []Snapshot {
		return runQuery(col, q)
	})
}

// runQuery evaluates a Query against a collection snapshot, cloning every
// returned document. Ties on the order-by field break on document ID so
// results are deterministic.
func runQuery(col map[string]Doc, q Query) []Snapshot {
	out := make([]Snapshot, 0, len(col))
	for id, d := range col {
		if q.Field != "" && !valueEquals(d[q.Field], q.Equals) {
			continue
		}
		out = append(out, Snapshot{ID: id, Data: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if q.OrderBy != "" {
			vi, vj := out[i].Data[q.OrderBy], out[j].Data[q.OrderBy]
			if c := compareValues(vi, vj); c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i := range out {
		out[i].Data = cloneDoc(out[i].Data)
	}
	return out
}

// valueEquals compares a stored (JSON-normalized) value with a caller-supplied
// filter value, coercing numbers to float64.
func valueEquals(stored, want any) bool {
	if sf, ok := toFloat(stored); ok {
		if wf, ok := toFloat(want); ok {
			return sf == wf
		}
		return false
	}
	return stored == want
}

// compareValues orders two stored values: numbers numerically, everything
// else as strings. Missing values sort first.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
