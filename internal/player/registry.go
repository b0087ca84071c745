// internal/player/registry.go
//
// Player Registry: stable identity to display name and cumulative score.
// A thin coordination layer over the document store; scores only ever move
// through the store's Increment primitive so two finished matches scoring
// the same player concurrently cannot lose an update.

package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/injaneity/victordle/internal/docstore"
)

// Collection is the registry's document collection.
const Collection = "players"

// ErrAmbiguousUsername is returned when a username lookup matches more than
// one player. Usernames are a secondary key with no uniqueness guarantee,
// so callers must decide what to do; the registry refuses to pick one.
var ErrAmbiguousUsername = errors.New("player: username matches multiple players")

// Player is the registry document. Score is monotonically non-decreasing
// under normal operation (increments only). Never deleted.
type Player struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Score      int    `json:"score"`
	CreatedAt  int64  `json:"createdAt"`
	LastActive int64  `json:"lastActive"`
}

// Registry is a constructed service object; callers own its lifetime.
type Registry struct {
	store docstore.Store
}

// NewRegistry builds a Registry over the given store.
func NewRegistry(store docstore.Store) *Registry {
	return &Registry{store: store}
}

// Upsert creates the player on first contact and refreshes username and
// lastActive afterwards, leaving the score untouched. Idempotent; safe to
// call on every session start.
func (r *Registry) Upsert(ctx context.Context, id, username string) error {
	now := docstore.Now()
	_, err := r.store.Get(ctx, Collection, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return r.store.Set(ctx, Collection, id, docstore.Doc{
			"id":         id,
			"username":   username,
			"score":      0,
			"createdAt":  now,
			"lastActive": now,
		})
	case err != nil:
		return fmt.Errorf("player: upsert %s: %w", id, err)
	default:
		return r.store.Merge(ctx, Collection, id, docstore.Doc{
			"username":   username,
			"lastActive": now,
		})
	}
}

// Get returns the player or docstore.ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Player, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	var p Player
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IncrementScore atomically adds delta to the player's score and refreshes
// lastActive. The lastActive merge is best effort.
func (r *Registry) IncrementScore(ctx context.Context, id string, delta int) error {
	if err := r.store.Increment(ctx, Collection, id, "score", int64(delta)); err != nil {
		return fmt.Errorf("player: increment score %s: %w", id, err)
	}
	if err := r.store.Merge(ctx, Collection, id, docstore.Doc{"lastActive": docstore.Now()}); err != nil {
		log.Warn().Err(err).Str("player", id).Msg("refresh lastActive")
	}
	return nil
}

// IncrementScoreByUsername resolves a player by display name and increments
// their score. Zero matches returns docstore.ErrNotFound; more than one
// returns ErrAmbiguousUsername rather than silently picking the first.
func (r *Registry) IncrementScoreByUsername(ctx context.Context, username string, delta int) error {
	snaps, err := r.store.Query(ctx, Collection, docstore.Query{
		Field:  "username",
		Equals: username,
	})
	if err != nil {
		return fmt.Errorf("player: lookup username %q: %w", username, err)
	}
	switch len(snaps) {
	case 0:
		return fmt.Errorf("player: username %q: %w", username, docstore.ErrNotFound)
	case 1:
		return r.IncrementScore(ctx, snaps[0].ID, delta)
	default:
		return fmt.Errorf("player: username %q: %w", username, ErrAmbiguousUsername)
	}
}
