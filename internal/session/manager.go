// internal/session/manager.go
//
// Session Manager: owns the shared representation of one two-player
// turn-based game.
// Responsibilities:
//   - Create sessions (secret word, fixed player order, first turn).
//   - Live subscription decoding store snapshots into game.Session.
//   - Partial state merges (no server-side compare-and-swap exists; callers
//     construct a consistent partial and last-write-wins applies).
//   - The turn submission protocol: local guards, guess coloring, win /
//     row-exhausted / turn-flip branches, registry score awards.

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/game"
	"github.com/injaneity/victordle/internal/player"
	"github.com/injaneity/victordle/internal/words"
)

// Collection is the session document collection.
const Collection = "games"

var (
	ErrFinished      = errors.New("session: game already finished")
	ErrNotYourTurn   = errors.New("session: not this player's turn")
	ErrUnknownPlayer = errors.New("session: player not in this game")
	ErrInvalidGuess  = errors.New("session: guess must be 5 letters")
	ErrOutOfGuesses  = errors.New("session: player has no guesses left")
)

// Rewards is the registry score policy applied when a session finishes.
// Observed variants of this game disagree on consolation scoring, so the
// policy is explicit configuration rather than a constant.
type Rewards struct {
	Win         int // awarded to the player who guessed the word
	Consolation int // awarded to the other player on a win
	Draw        int // awarded to both players when the rows run out
}

// DefaultRewards awards the winner only.
var DefaultRewards = Rewards{Win: 10}

// GenerousRewards matches the variant where losing still pays a point.
var GenerousRewards = Rewards{Win: 10, Consolation: 1, Draw: 1}

// Manager is a constructed service object; callers own its lifetime.
type Manager struct {
	store    docstore.Store
	players  *player.Registry
	rewards  Rewards
	pickWord func() string
	log      zerolog.Logger
}

// NewManager builds a session manager. pickWord may be nil, in which case
// the words package supplies answers.
func NewManager(store docstore.Store, players *player.Registry, rewards Rewards, pickWord func() string) *Manager {
	if pickWord == nil {
		pickWord = words.Random
	}
	return &Manager{
		store:    store,
		players:  players,
		rewards:  rewards,
		pickWord: pickWord,
		log:      log.With().Str("component", "session").Logger(),
	}
}

// CreateGame builds and persists a fresh session: both players zero-scored
// with empty guess logs, a random secret word, player1 to move, status
// waiting. Display names come from the registry.
func (m *Manager) CreateGame(ctx context.Context, sessionID, player1ID, player2ID string) (*game.Session, error) {
	p1, err := m.players.Get(ctx, player1ID)
	if err != nil {
		return nil, fmt.Errorf("session: create %s: player %s: %w", sessionID, player1ID, err)
	}
	p2, err := m.players.Get(ctx, player2ID)
	if err != nil {
		return nil, fmt.Errorf("session: create %s: player %s: %w", sessionID, player2ID, err)
	}

	s := &game.Session{
		ID:          sessionID,
		PlayerOrder: []string{player1ID, player2ID},
		Players: map[string]game.PlayerState{
			player1ID: {ID: player1ID, Username: p1.Username, Guesses: []game.Guess{}},
			player2ID: {ID: player2ID, Username: p2.Username, Guesses: []game.Guess{}},
		},
		Word:              m.pickWord(),
		CurrentTurn:       player1ID,
		Status:            game.StatusWaiting,
		LastMoveTimestamp: docstore.Now(),
	}

	doc, err := docstore.Encode(s)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, Collection, sessionID, doc); err != nil {
		return nil, fmt.Errorf("session: create %s: %w", sessionID, err)
	}
	m.log.Info().Str("session", sessionID).Str("player1", player1ID).Str("player2", player2ID).Msg("session created")
	return s, nil
}

// Get reads and decodes a session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*game.Session, error) {
	doc, err := m.store.Get(ctx, Collection, sessionID)
	if err != nil {
		return nil, err
	}
	var s game.Session
	if err := docstore.Decode(doc, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SubscribeToGame invokes callback with the full decoded session on every
// change. The callback never fires for a missing or deleted document.
// The returned func disposes the subscription.
func (m *Manager) SubscribeToGame(sessionID string, callback func(*game.Session)) (func(), error) {
	return m.store.Watch(Collection, sessionID, func(doc docstore.Doc) {
		var s game.Session
		if err := docstore.Decode(doc, &s); err != nil {
			m.log.Warn().Err(err).Str("session", sessionID).Msg("undecodable session snapshot")
			return
		}
		callback(&s)
	})
}

// UpdateGameState applies a partial field merge to the stored session.
// Concurrent partials from both clients can race; the protocol's turn gating
// is what keeps that window small.
func (m *Manager) UpdateGameState(ctx context.Context, sessionID string, updates docstore.Doc) error {
	return m.store.Merge(ctx, Collection, sessionID, updates)
}

// SubmitGuess runs the turn submission protocol for the acting client
// holding the turn, against its current session snapshot.
func (m *Manager) SubmitGuess(ctx context.Context, s *game.Session, playerID, word string) error {
	if s.Finished() {
		return ErrFinished
	}
	if s.CurrentTurn != playerID {
		return ErrNotYourTurn
	}
	ps, ok := s.Players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	word = strings.ToUpper(strings.TrimSpace(word))
	if len(word) != game.WordLength || !words.IsUpperAlpha(word) {
		return ErrInvalidGuess
	}
	if len(ps.Guesses) >= game.MaxGuessesPerPlayer {
		return ErrOutOfGuesses
	}

	now := docstore.Now()
	guess := game.Guess{
		Word:      word,
		Timestamp: now,
		Colors:    game.ScoreGuess(s.Word, word),
	}

	// New players map with the guess appended; prior guesses are immutable.
	players := make(map[string]game.PlayerState, len(s.Players))
	for id, p := range s.Players {
		players[id] = p
	}
	ps.Guesses = append(append([]game.Guess{}, ps.Guesses...), guess)
	players[playerID] = ps

	updates := docstore.Doc{
		"players":           players,
		"lastMoveTimestamp": now,
	}

	switch {
	case word == s.Word:
		updates["status"] = game.StatusFinished
		m.award(ctx, playerID, m.rewards.Win)
		m.award(ctx, s.Opponent(playerID), m.rewards.Consolation)
	case len(ps.Guesses) >= game.MaxGuessesPerPlayer:
		// Acting player's row is exhausted without a win.
		updates["status"] = game.StatusFinished
		m.award(ctx, playerID, m.rewards.Draw)
		m.award(ctx, s.Opponent(playerID), m.rewards.Draw)
	default:
		updates["currentTurn"] = s.Opponent(playerID)
		if s.Status == game.StatusWaiting {
			updates["status"] = game.StatusActive
		}
	}

	if err := m.UpdateGameState(ctx, s.ID, updates); err != nil {
		return fmt.Errorf("session: submit guess %s: %w", s.ID, err)
	}
	return nil
}

// award moves registry score. Best effort: a failed award is a logged
// anomaly, never a failed turn.
func (m *Manager) award(ctx context.Context, playerID string, points int) {
	if playerID == "" || points == 0 {
		return
	}
	if err := m.players.IncrementScore(ctx, playerID, points); err != nil {
		m.log.Warn().Err(err).Str("player", playerID).Int("points", points).Msg("score award failed")
	}
}
