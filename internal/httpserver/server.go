// internal/httpserver/server.go
//
// HTTP facade over the game core, for local development and operations.
// Responsibilities:
//   - Router + middleware (JSON, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", leaderboard and game reads.
//   - Identity-gated endpoints: player upsert/read, score adjustments.
//   - WebSocket streams bridging store subscriptions to clients (ws.go).
//
// The mobile clients talk to the document store directly; this surface
// exists so the same data is reachable with curl and a browser.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/identity"
	"github.com/injaneity/victordle/internal/leaderboard"
	"github.com/injaneity/victordle/internal/player"
	"github.com/injaneity/victordle/internal/session"
)

// Server bundles router, document store, and the core service objects.
type Server struct {
	r        *chi.Mux
	store    docstore.Store
	players  *player.Registry
	sessions *session.Manager
}

// New constructs a Server, installs middleware, and registers routes.
func New(store docstore.Store, players *player.Registry, sessions *session.Manager) *Server {
	s := &Server{r: chi.NewRouter(), store: store, players: players, sessions: sessions}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)

	// WebSocket endpoints live outside the timeout/json group: an upgraded
	// connection outlives any sane handler deadline.
	s.r.Get("/ws/games/{id}", s.handleGameStream)
	s.r.Get("/ws/leaderboard", s.handleLeaderboardStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"service":"victordle","endpoints":["/health","/leaderboard","/games/{id}","/ws/games/{id}","/ws/leaderboard"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/games/{id}", s.handleGetGame)
		r.Get("/players/{id}", s.handleGetPlayer)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)
			r.Post("/players/me", s.handleUpsertSelf)
			r.Post("/scores/username", s.handleScoreByUsername)
		})
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})
	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// ctxIdentityKey is the context key type for storing the caller identity.
type ctxIdentityKey struct{}

// requireIdentity verifies an externally issued bearer token and injects the
// identity into request context. The facade never mints tokens.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		id, err := identity.FromToken(strings.TrimSpace(auth[7:]), identitySecret())
		if err != nil {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxIdentityKey{}, id)))
	})
}

func callerIdentity(r *http.Request) *identity.Identity {
	id, _ := r.Context().Value(ctxIdentityKey{}).(*identity.Identity)
	return id
}

func identitySecret() string {
	if v := os.Getenv("IDENTITY_SECRET"); v != "" {
		return v
	}
	return "dev_secret_change_me"
}

// ------------------------------ handlers -----------------------------------

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	top, err := leaderboard.Top(r.Context(), s.store, limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard query")
		http.Error(w, `{"error":"query_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(top)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, docstore.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"read_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(g)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.players.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, docstore.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"read_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

// handleUpsertSelf registers or refreshes the caller in the player registry.
// Idempotent by design; the mobile client calls this on every session start.
func (s *Server) handleUpsertSelf(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	if err := s.players.Upsert(r.Context(), id.ID, id.DisplayName); err != nil {
		log.Error().Err(err).Str("player", id.ID).Msg("player upsert")
		http.Error(w, `{"error":"upsert_failed"}`, http.StatusInternalServerError)
		return
	}
	p, err := s.players.Get(r.Context(), id.ID)
	if err != nil {
		http.Error(w, `{"error":"read_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

type scoreByUsernameReq struct {
	Username string `json:"username"`
	Delta    int    `json:"delta"`
}

// handleScoreByUsername adjusts a score through the secondary-key lookup.
// Ambiguous usernames are a client-visible conflict, not a silent pick.
func (s *Server) handleScoreByUsername(w http.ResponseWriter, r *http.Request) {
	var req scoreByUsernameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	err := s.players.IncrementScoreByUsername(r.Context(), req.Username, req.Delta)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	case errors.Is(err, player.ErrAmbiguousUsername):
		http.Error(w, `{"error":"ambiguous_username"}`, http.StatusConflict)
	case err != nil:
		log.Error().Err(err).Str("username", req.Username).Msg("score by username")
		http.Error(w, `{"error":"update_failed"}`, http.StatusInternalServerError)
	default:
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}
