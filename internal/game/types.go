// internal/game/types.go
//
// Core type definitions for the two-player turn-based game.
// Defines:
//   - Color: per-letter result of a guess (green/yellow/gray).
//   - Status: session lifecycle (waiting/active/finished).
//   - Guess, PlayerState, Session: the shared document shape both clients
//     read and write through the document store.

package game

const (
	// WordLength is the fixed guess/answer length.
	WordLength = 5
	// MaxGuessesPerPlayer caps each player's independent guess log.
	MaxGuessesPerPlayer = 6
)

// Color is the evaluation result for a single letter in a guess.
//   - "green":  correct letter, correct position.
//   - "yellow": letter exists in the answer, different position.
//   - "gray":   letter does not appear (or all its occurrences are used).
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorGray   Color = "gray"
)

// Status is the session lifecycle state. Transitions are forward-only:
// waiting moves to active on the first guess, finished is terminal.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Guess is one submitted word with its colors. Colors are computed once at
// submission time and never recomputed.
type Guess struct {
	Word      string  `json:"word"`
	Timestamp int64   `json:"timestamp"`
	Colors    []Color `json:"colors"`
}

// PlayerState is a player's per-session slice of the document: a private
// guess log plus the display identity captured at match time. Score here is
// the in-game counter, not the registry score.
type PlayerState struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Score    int     `json:"score"`
	Guesses  []Guess `json:"guesses"`
}

// Session is the authoritative state of one match. Jointly owned by both
// participants; writes are gated by the currentTurn check, not by the store.
type Session struct {
	ID                string                 `json:"id"`
	PlayerOrder       []string               `json:"playerOrder"` // stable display order, not turn order
	Players           map[string]PlayerState `json:"players"`
	Word              string                 `json:"word"` // secret, immutable after creation
	CurrentTurn       string                 `json:"currentTurn"`
	Status            Status                 `json:"status"`
	LastMoveTimestamp int64                  `json:"lastMoveTimestamp"`
}

// Opponent returns the other participant's ID, or "" if playerID is not in
// this session.
func (s *Session) Opponent(playerID string) string {
	found := false
	other := ""
	for _, id := range s.PlayerOrder {
		if id == playerID {
			found = true
		} else {
			other = id
		}
	}
	if !found {
		return ""
	}
	return other
}

// Finished reports whether the session reached its terminal state.
func (s *Session) Finished() bool { return s.Status == StatusFinished }
