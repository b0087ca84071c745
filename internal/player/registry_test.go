package player

import (
	"context"
	"errors"
	"testing"

	"github.com/injaneity/victordle/internal/docstore"
)

func TestUpsertCreatesThenRefreshes(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	r := NewRegistry(store)

	if err := r.Upsert(ctx, "p1", "vic"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	p, err := r.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Username != "vic" || p.Score != 0 || p.CreatedAt == 0 {
		t.Fatalf("created player = %+v", p)
	}

	if err := r.IncrementScore(ctx, "p1", 10); err != nil {
		t.Fatalf("increment: %v", err)
	}
	// Re-upserting keeps the score but follows a username change.
	if err := r.Upsert(ctx, "p1", "victoria"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	p, _ = r.Get(ctx, "p1")
	if p.Username != "victoria" || p.Score != 10 {
		t.Fatalf("after re-upsert = %+v", p)
	}
}

func TestGetMissing(t *testing.T) {
	r := NewRegistry(docstore.NewMemory())
	if _, err := r.Get(context.Background(), "ghost"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestIncrementScoreMissingPlayer(t *testing.T) {
	r := NewRegistry(docstore.NewMemory())
	if err := r.IncrementScore(context.Background(), "ghost", 5); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("increment missing = %v, want ErrNotFound", err)
	}
}

func TestIncrementScoreByUsername(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(docstore.NewMemory())
	_ = r.Upsert(ctx, "p1", "vic")
	_ = r.Upsert(ctx, "p2", "sam")

	if err := r.IncrementScoreByUsername(ctx, "vic", 3); err != nil {
		t.Fatalf("increment by username: %v", err)
	}
	p, _ := r.Get(ctx, "p1")
	if p.Score != 3 {
		t.Fatalf("score = %d, want 3", p.Score)
	}

	if err := r.IncrementScoreByUsername(ctx, "nobody", 1); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("unknown username = %v, want ErrNotFound", err)
	}

	// Duplicate display names must be refused, not resolved arbitrarily.
	_ = r.Upsert(ctx, "p3", "vic")
	if err := r.IncrementScoreByUsername(ctx, "vic", 1); !errors.Is(err, ErrAmbiguousUsername) {
		t.Fatalf("duplicate username = %v, want ErrAmbiguousUsername", err)
	}
	p, _ = r.Get(ctx, "p1")
	if p.Score != 3 {
		t.Fatalf("score moved on ambiguous lookup: %d", p.Score)
	}
}
