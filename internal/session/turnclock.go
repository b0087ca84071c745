// internal/session/turnclock.go
//
// Per-client advisory turn countdown. Every participant runs one; whichever
// client's timer fires first flips the turn through a normal state merge.
// This is pressure, not an authoritative clock: there is no consensus on
// elapsed time, and a duplicate flip from both clients resolves by
// last-write-wins on the session document.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/game"
)

// TurnClock watches one session and flips currentTurn when the per-turn
// budget expires while the session is unfinished.
type TurnClock struct {
	mgr       *Manager
	sessionID string
	budget    time.Duration

	mu       sync.Mutex
	latest   *game.Session
	lastTurn string
	timer    *time.Timer
	cancel   func()
	stopped  bool
}

// NewTurnClock builds a clock for sessionID with the given per-turn budget.
func (m *Manager) NewTurnClock(sessionID string, budget time.Duration) *TurnClock {
	return &TurnClock{mgr: m, sessionID: sessionID, budget: budget}
}

// Start subscribes to the session and begins counting down the current turn.
// Stop must be called to release the subscription and timer.
func (c *TurnClock) Start(ctx context.Context) error {
	cancel, err := c.mgr.SubscribeToGame(c.sessionID, func(s *game.Session) {
		c.observe(ctx, s)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return nil
}

// Stop cancels the countdown and the session subscription. Idempotent.
func (c *TurnClock) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// observe rearms the countdown whenever the turn changes and disarms it
// once the session finishes.
func (c *TurnClock) observe(ctx context.Context, s *game.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.latest = s
	if s.Finished() {
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		return
	}
	if s.CurrentTurn == c.lastTurn && c.timer != nil {
		return
	}
	c.lastTurn = s.CurrentTurn
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.budget, func() { c.expire(ctx) })
}

// expire passes the turn if the budget ran out on an unfinished session.
func (c *TurnClock) expire(ctx context.Context) {
	c.mu.Lock()
	s := c.latest
	stopped := c.stopped
	c.mu.Unlock()
	if stopped || s == nil || s.Finished() {
		return
	}
	next := s.Opponent(s.CurrentTurn)
	if next == "" {
		return
	}
	err := c.mgr.UpdateGameState(ctx, c.sessionID, docstore.Doc{
		"currentTurn":       next,
		"lastMoveTimestamp": docstore.Now(),
	})
	if err != nil {
		c.mgr.log.Warn().Err(err).Str("session", c.sessionID).Msg("turn timeout flip failed")
		return
	}
	c.mgr.log.Debug().Str("session", c.sessionID).Str("nextTurn", next).Msg("turn timed out")
}
