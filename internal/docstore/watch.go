// internal/docstore/watch.go
//
// In-process subscription hub shared by the memory and SQLite backends.
// Each watcher gets its own ordered delivery queue so a slow callback can
// never block a writer or another watcher, and snapshots for one watcher
// are always observed in the order the store produced them.

package docstore

import "sync"

// watcher serializes snapshot delivery to a single subscriber.
type watcher struct {
	mu       sync.Mutex
	pending  []any
	draining bool
	closed   bool
	deliver  func(any)
}

// enqueue appends an event and starts a drain goroutine if none is running.
// Never blocks the caller.
func (w *watcher) enqueue(v any) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, v)
	if w.draining {
		w.mu.Unlock()
		return
	}
	w.draining = true
	w.mu.Unlock()
	go w.drain()
}

func (w *watcher) drain() {
	for {
		w.mu.Lock()
		if w.closed || len(w.pending) == 0 {
			w.draining = false
			w.mu.Unlock()
			return
		}
		v := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()
		w.deliver(v)
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.mu.Unlock()
}

type docKey struct{ collection, id string }

type queryWatcher struct {
	collection string
	query      Query
	w          *watcher
}

// hub keeps the registered watchers for one store instance.
type hub struct {
	mu            sync.Mutex
	nextID        int
	docWatchers   map[docKey]map[int]*watcher
	queryWatchers map[string]map[int]*queryWatcher // keyed by collection
}

func newHub() *hub {
	return &hub{
		docWatchers:   make(map[docKey]map[int]*watcher),
		queryWatchers: make(map[string]map[int]*queryWatcher),
	}
}

// addDocWatcher registers fn for a single document and returns a disposer.
func (h *hub) addDocWatcher(collection, id string, fn func(Doc)) (*watcher, func()) {
	w := &watcher{deliver: func(v any) { fn(v.(Doc)) }}
	h.mu.Lock()
	h.nextID++
	wid := h.nextID
	key := docKey{collection, id}
	if h.docWatchers[key] == nil {
		h.docWatchers[key] = make(map[int]*watcher)
	}
	h.docWatchers[key][wid] = w
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.docWatchers[key], wid)
			h.mu.Unlock()
			w.close()
		})
	}
	return w, cancel
}

// addQueryWatcher registers fn for a collection query and returns a disposer.
func (h *hub) addQueryWatcher(collection string, q Query, fn func([]Snapshot)) (*watcher, func()) {
	w := &watcher{deliver: func(v any) { fn(v.([]Snapshot)) }}
	h.mu.Lock()
	h.nextID++
	wid := h.nextID
	if h.queryWatchers[collection] == nil {
		h.queryWatchers[collection] = make(map[int]*queryWatcher)
	}
	h.queryWatchers[collection][wid] = &queryWatcher{collection: collection, query: q, w: w}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.queryWatchers[collection], wid)
			h.mu.Unlock()
			w.close()
		})
	}
	return w, cancel
}

// docChanged fans a mutation out to watchers. doc is nil for deletions;
// single-document watchers are only notified while the document exists.
// evalQuery must evaluate a query against the state that includes this
// mutation; it is called synchronously so per-watcher ordering matches
// the order of mutations.
func (h *hub) docChanged(collection, id string, doc Doc, evalQuery func(Query) []Snapshot) {
	h.mu.Lock()
	var docTargets []*watcher
	for _, w := range h.docWatchers[docKey{collection, id}] {
		docTargets = append(docTargets, w)
	}
	type pending struct {
		w     *watcher
		snaps []Snapshot
	}
	var queryTargets []pending
	for _, qw := range h.queryWatchers[collection] {
		queryTargets = append(queryTargets, pending{qw.w, evalQuery(qw.query)})
	}
	h.mu.Unlock()

	if doc != nil {
		for _, w := range docTargets {
			w.enqueue(cloneDoc(doc))
		}
	}
	for _, p := range queryTargets {
		p.w.enqueue(p.snaps)
	}
}
