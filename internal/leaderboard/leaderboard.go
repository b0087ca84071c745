// internal/leaderboard/leaderboard.go
//
// Live top-N players by registry score. Read-only over the players
// collection; display is someone else's problem.

package leaderboard

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/player"
)

// DefaultLimit is used when callers pass a non-positive limit.
const DefaultLimit = 10

// Top returns the current top players by score, highest first.
func Top(ctx context.Context, store docstore.Store, limit int) ([]player.Player, error) {
	snaps, err := store.Query(ctx, player.Collection, topQuery(limit))
	if err != nil {
		return nil, err
	}
	return decodePlayers(snaps), nil
}

// Subscribe invokes callback with the recomputed top players on every change
// to the players collection. The returned func disposes the subscription.
func Subscribe(store docstore.Store, limit int, callback func([]player.Player)) (func(), error) {
	return store.WatchQuery(player.Collection, topQuery(limit), func(snaps []docstore.Snapshot) {
		callback(decodePlayers(snaps))
	})
}

func topQuery(limit int) docstore.Query {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return docstore.Query{OrderBy: "score", Desc: true, Limit: limit}
}

func decodePlayers(snaps []docstore.Snapshot) []player.Player {
	return lo.FilterMap(snaps, func(s docstore.Snapshot, _ int) (player.Player, bool) {
		var p player.Player
		if err := docstore.Decode(s.Data, &p); err != nil {
			log.Warn().Err(err).Str("player", s.ID).Msg("undecodable player document")
			return player.Player{}, false
		}
		p.ID = s.ID
		return p, true
	})
}
