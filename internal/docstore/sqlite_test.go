package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "players", "p1", Doc{"username": "vic", "score": 10}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	d, err := s2.Get(ctx, "players", "p1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if d["username"].(string) != "vic" || d["score"].(float64) != 10 {
		t.Fatalf("doc after reopen = %v", d)
	}
}

func TestSQLiteMergeAndIncrement(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.Merge(ctx, "c", "x", Doc{"a": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("merge missing = %v, want ErrNotFound", err)
	}
	_ = s.Set(ctx, "c", "x", Doc{"a": 1, "b": "keep"})
	if err := s.Merge(ctx, "c", "x", Doc{"a": 5}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s.Increment(ctx, "c", "x", "score", 3); err != nil {
		t.Fatalf("increment fresh field: %v", err)
	}
	if err := s.Increment(ctx, "c", "x", "score", 4); err != nil {
		t.Fatalf("increment: %v", err)
	}

	d, _ := s.Get(ctx, "c", "x")
	if d["a"].(float64) != 5 || d["b"].(string) != "keep" || d["score"].(float64) != 7 {
		t.Fatalf("doc = %v", d)
	}
}

func TestSQLiteQueryAndWatch(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	_ = s.Set(ctx, "q", "late", Doc{"status": "searching", "timestamp": 9})
	_ = s.Set(ctx, "q", "early", Doc{"status": "searching", "timestamp": 1})
	_ = s.Set(ctx, "q", "other", Doc{"status": "matched", "timestamp": 5})

	snaps, err := s.Query(ctx, "q", Query{Field: "status", Equals: "searching", OrderBy: "timestamp"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "early" || snaps[1].ID != "late" {
		t.Fatalf("query result = %v", ids(snaps))
	}

	got := make(chan Doc, 16)
	cancel, err := s.Watch("q", "early", func(d Doc) { got <- d })
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	if d := recvDoc(t, got); d["timestamp"].(float64) != 1 {
		t.Fatalf("initial snapshot = %v", d)
	}
	_ = s.Merge(ctx, "q", "early", Doc{"status": "matched"})
	if d := recvDoc(t, got); d["status"].(string) != "matched" {
		t.Fatalf("change snapshot = %v", d)
	}

	_ = s.Delete(ctx, "q", "early")
	select {
	case d := <-got:
		t.Fatalf("snapshot after delete: %v", d)
	case <-time.After(50 * time.Millisecond):
	}
}
