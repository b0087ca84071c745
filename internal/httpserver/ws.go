// internal/httpserver/ws.go
//
// WebSocket bridges from store subscriptions to clients. Each connection
// carries full snapshots, newest wins: if a client reads slowly, stale
// intermediate snapshots are dropped rather than queued.

package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/injaneity/victordle/internal/game"
	"github.com/injaneity/victordle/internal/leaderboard"
	"github.com/injaneity/victordle/internal/player"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dev facade; origin policy belongs to whatever fronts this in prod.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleGameStream streams decoded session snapshots for one game.
func (s *Server) handleGameStream(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	snaps := make(chan any, 1)
	cancel, err := s.sessions.SubscribeToGame(gameID, func(g *game.Session) {
		pushLatest(snaps, g)
	})
	if err != nil {
		_ = conn.Close()
		return
	}
	streamSnapshots(conn, snaps, cancel)
}

// handleLeaderboardStream streams the recomputed top players on every change.
func (s *Server) handleLeaderboardStream(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	snaps := make(chan any, 1)
	cancel, err := leaderboard.Subscribe(s.store, limit, func(top []player.Player) {
		pushLatest(snaps, top)
	})
	if err != nil {
		_ = conn.Close()
		return
	}
	streamSnapshots(conn, snaps, cancel)
}

// pushLatest replaces any pending snapshot with the newest one.
func pushLatest(ch chan any, v any) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// streamSnapshots writes snapshots until the peer goes away, then disposes
// the subscription. The read loop exists only to notice the close.
func streamSnapshots(conn *websocket.Conn, snaps chan any, cancel func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer cancel()
		defer func() { _ = conn.Close() }()
		for {
			select {
			case v := <-snaps:
				if err := conn.WriteJSON(v); err != nil {
					log.Debug().Err(err).Msg("ws write failed")
					return
				}
			case <-done:
				return
			}
		}
	}()
}
