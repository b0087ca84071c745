// internal/docstore/sqlite.go
//
// SQLite-backed Store implementation. Documents are JSON blobs in a single
// documents table, so the schema never changes as the data model evolves.
// Subscriptions are served by the same in-process hub as the memory backend:
// durable data, process-local change notifications. That makes this backend
// a single-writer-process store; a second process would persist fine but
// never see the first one's changes live.

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	mu  sync.Mutex // serializes writes; makes Increment atomic in-process
	db  *sql.DB
	hub *hub
}

// OpenSQLite opens (creating if missing) a SQLite-backed store at path.
// WAL journaling and a busy timeout keep concurrent readers happy.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		data       TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);`); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &SQLite{db: db, hub: newHub()}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Get(ctx context.Context, collection, id string) (Doc, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection=? AND id=?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRaw(raw)
}

func (s *SQLite) Set(ctx context.Context, collection, id string, doc Doc) error {
	nd, err := normalize(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(ctx, collection, id, nd); err != nil {
		return err
	}
	return s.notifyLocked(ctx, collection, id, nd)
}

func (s *SQLite) Merge(ctx context.Context, collection, id string, fields Doc) error {
	nf, err := normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range nf {
		cur[k] = v
	}
	if err := s.writeLocked(ctx, collection, id, cur); err != nil {
		return err
	}
	return s.notifyLocked(ctx, collection, id, cur)
}

func (s *SQLite) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	prev, _ := cur[field].(float64)
	cur[field] = prev + float64(delta)
	if err := s.writeLocked(ctx, collection, id, cur); err != nil {
		return err
	}
	return s.notifyLocked(ctx, collection, id, cur)
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection=? AND id=?`, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	return s.notifyLocked(ctx, collection, id, nil)
}

func (s *SQLite) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	col, err := s.loadCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	return runQuery(col, q), nil
}

func (s *SQLite) Watch(collection, id string, fn func(Doc)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, cancel := s.hub.addDocWatcher(collection, id, fn)
	if cur, err := s.Get(context.Background(), collection, id); err == nil {
		w.enqueue(cur)
	}
	return cancel, nil
}

func (s *SQLite) WatchQuery(collection string, q Query, fn func([]Snapshot)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, cancel := s.hub.addQueryWatcher(collection, q, fn)
	col, err := s.loadCollection(context.Background(), collection)
	if err != nil {
		return nil, err
	}
	w.enqueue(runQuery(col, q))
	return cancel, nil
}

func (s *SQLite) writeLocked(ctx context.Context, collection, id string, doc Doc) error {
	raw, err := encodeRaw(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?,?,?)
		ON CONFLICT(collection, id) DO UPDATE SET data=excluded.data`,
		collection, id, raw)
	return err
}

// notifyLocked fans a committed mutation out through the hub. Query watchers
// are evaluated against a fresh read of the collection.
func (s *SQLite) notifyLocked(ctx context.Context, collection, id string, doc Doc) error {
	col, err := s.loadCollection(ctx, collection)
	if err != nil {
		return err
	}
	s.hub.docChanged(collection, id, doc, func(q Query) []Snapshot {
		return runQuery(col, q)
	})
	return nil
}

func (s *SQLite) loadCollection(ctx context.Context, collection string) (map[string]Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection=?`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	col := make(map[string]Doc)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		d, err := decodeRaw(raw)
		if err != nil {
			return nil, err
		}
		col[id] = d
	}
	return col, rows.Err()
}

func encodeRaw(d Doc) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRaw(raw string) (Doc, error) {
	var d Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("docstore: corrupt document: %w", err)
	}
	return d, nil
}
