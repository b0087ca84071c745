// internal/queue/manager.go
//
// Queue Manager: one per searching player, coordinating FIFO matchmaking
// through the document store with no server-side authority. Every queued
// client runs the identical matching logic against the same query snapshots;
// the protocol keeps that safe with three ordering rules:
//
//   - Listen before announce: a player subscribes to its own entry and the
//     searching query while still in "gettingReady", and only flips to
//     "searching" after a settle delay, so nobody can mutate its entry
//     before it is watching for the mutation.
//   - Only the earliest live entry acts: both clients observe the same
//     ordered query results, but match creation runs solely on the client
//     whose entry sorts first, gated by a local once-only flag.
//   - Other before self, then grace-delayed cleanup: the partner's entry is
//     flipped to "matched" first, the actor's own entry second, and both
//     entries are deleted only after a grace period so neither subscription
//     tears down before it observed the transition.

package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/session"
)

// Collection is the queue entry collection.
const Collection = "queues"

// Queue entry statuses.
const (
	StatusGettingReady = "gettingReady" // entry exists, listeners still attaching
	StatusSearching    = "searching"    // visible to matching logic
	StatusMatched      = "matched"      // matchId assigned, entry pending cleanup
)

// Entry is a player's advertised intent to be matched.
// Single-writer (the owner) in steady state; the one sanctioned exception is
// the matching client writing status/matchId during the matched transition.
type Entry struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"` // join order, FIFO tie-break
	Status    string `json:"status"`
	LastPing  int64  `json:"lastPing"` // liveness heartbeat
	MatchID   string `json:"matchId,omitempty"`
}

// Config holds the protocol's timing knobs. The defaults mirror production;
// tests shrink them.
type Config struct {
	HeartbeatInterval time.Duration // lastPing refresh period
	StaleAfter        time.Duration // max heartbeat age before an entry is ignored
	SettleDelay       time.Duration // gap between attaching listeners and announcing "searching"
	MinPartnerWait    time.Duration // min partner entry age before mutating it
	PeerNotifyDelay   time.Duration // gap between partner update and self update
	CleanupGrace      time.Duration // delay before deleting matched entries
}

// DefaultConfig returns the production timing profile.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
		StaleAfter:        30 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		MinPartnerWait:    2 * time.Second,
		PeerNotifyDelay:   300 * time.Millisecond,
		CleanupGrace:      5 * time.Second,
	}
}

// Manager drives one player's trip through the queue. Construct one per
// matchmaking attempt; it is not reusable after LeaveQueue.
type Manager struct {
	store    docstore.Store
	sessions *session.Manager
	userID   string
	cfg      Config
	log      zerolog.Logger

	mu        sync.Mutex
	joined    bool
	acting    bool // this client started match creation
	notified  bool // onMatchFound already delivered
	disposers []func()
}

// New builds a queue manager for userID.
func New(store docstore.Store, sessions *session.Manager, userID string, cfg Config) *Manager {
	return &Manager{
		store:    store,
		sessions: sessions,
		userID:   userID,
		cfg:      cfg,
		log:      log.With().Str("component", "queue").Str("player", userID).Logger(),
	}
}

// Searching reports whether this manager currently holds a queue membership.
func (m *Manager) Searching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined && !m.notified
}

// Matched reports whether onMatchFound has been delivered.
func (m *Manager) Matched() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notified
}

// JoinQueue writes this player's entry, wires up the heartbeat and the two
// subscriptions, and finally announces the player as searching. Returns once
// the announcement is written; onMatchFound fires later, exactly once, from
// a subscription callback.
func (m *Manager) JoinQueue(ctx context.Context, onMatchFound func(sessionID string)) error {
	now := docstore.Now()
	err := m.store.Set(ctx, Collection, m.userID, docstore.Doc{
		"userId":    m.userID,
		"timestamp": now,
		"status":    StatusGettingReady,
		"lastPing":  now,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.joined = true
	m.mu.Unlock()

	m.startHeartbeat(ctx)

	ownCancel, err := m.store.Watch(Collection, m.userID, m.onOwnSnapshot(ctx, onMatchFound))
	if err != nil {
		return err
	}
	m.addDisposer(ownCancel)

	queryCancel, err := m.store.WatchQuery(Collection, docstore.Query{
		Field:   "status",
		Equals:  StatusSearching,
		OrderBy: "timestamp",
	}, m.onSearchingSnapshot(ctx))
	if err != nil {
		return err
	}
	m.addDisposer(queryCancel)

	// Listeners are attached; give their initial snapshots a moment to
	// settle before this entry becomes visible to other players' matching
	// logic.
	if !sleepCtx(ctx, m.cfg.SettleDelay) {
		return ctx.Err()
	}
	if err := m.store.Merge(ctx, Collection, m.userID, docstore.Doc{"status": StatusSearching}); err != nil {
		return err
	}
	m.log.Debug().Msg("searching")
	return nil
}

// LeaveQueue cancels the heartbeat and all subscriptions and removes this
// player's entry. Callable at any point; deleting an absent entry is fine.
func (m *Manager) LeaveQueue(ctx context.Context) error {
	m.mu.Lock()
	m.joined = false
	disposers := m.disposers
	m.disposers = nil
	m.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
	return m.store.Delete(ctx, Collection, m.userID)
}

// startHeartbeat refreshes lastPing on a fixed interval until disposed or
// until the entry disappears (post-match cleanup).
func (m *Manager) startHeartbeat(ctx context.Context) {
	stop := make(chan struct{})
	var once sync.Once
	m.addDisposer(func() { once.Do(func() { close(stop) }) })

	go func() {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := m.store.Merge(ctx, Collection, m.userID, docstore.Doc{"lastPing": docstore.Now()})
				if errors.Is(err, docstore.ErrNotFound) {
					return
				}
				if err != nil {
					m.log.Warn().Err(err).Msg("heartbeat write failed")
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// onSearchingSnapshot is the shared matching rule, run on every snapshot of
// the searching query.
func (m *Manager) onSearchingSnapshot(ctx context.Context) func([]docstore.Snapshot) {
	return func(snaps []docstore.Snapshot) {
		now := docstore.Now()
		entries := lo.FilterMap(snaps, func(s docstore.Snapshot, _ int) (Entry, bool) {
			var e Entry
			if err := docstore.Decode(s.Data, &e); err != nil {
				m.log.Warn().Err(err).Str("entry", s.ID).Msg("undecodable queue entry")
				return Entry{}, false
			}
			return e, true
		})

		// Stale entries are abandoned clients: ignored, never deleted by an
		// observer. The query is timestamp-ordered, so after filtering the
		// first two remaining entries are the two longest-waiting live ones.
		live := lo.Filter(entries, func(e Entry, _ int) bool {
			return now-e.LastPing <= m.cfg.StaleAfter.Milliseconds()
		})
		if len(live) < 2 {
			return
		}
		first, second := live[0], live[1]
		if first.UserID != m.userID {
			return
		}

		// Multiple snapshots can arrive before the matched state settles;
		// act at most once.
		m.mu.Lock()
		if m.acting || !m.joined {
			m.mu.Unlock()
			return
		}
		m.acting = true
		m.mu.Unlock()

		go m.createMatch(ctx, first, second)
	}
}

// createMatch runs on the earliest queued client only: create the session,
// flip the partner's entry, then our own, then clean both up after a grace
// period.
func (m *Manager) createMatch(ctx context.Context, self, partner Entry) {
	// If the partner joined moments ago its own listeners may still be
	// attaching; wait out the remainder of the settle window before
	// mutating its entry.
	if age := time.Duration(docstore.Now()-partner.Timestamp) * time.Millisecond; age < m.cfg.MinPartnerWait {
		if !sleepCtx(ctx, m.cfg.MinPartnerWait-age) {
			return
		}
	}

	sessionID := "match_" + uuid.NewString()
	if _, err := m.sessions.CreateGame(ctx, sessionID, self.UserID, partner.UserID); err != nil {
		// Abandon this attempt; the next query snapshot retries.
		m.log.Warn().Err(err).Str("partner", partner.UserID).Msg("match creation failed")
		m.mu.Lock()
		m.acting = false
		m.mu.Unlock()
		return
	}
	m.log.Info().Str("session", sessionID).Str("partner", partner.UserID).Msg("match created")

	matched := docstore.Doc{"status": StatusMatched, "matchId": sessionID}
	// Partner first: its listener is the one we cannot vouch for, so it gets
	// the longest possible window to observe the flip. Writing another
	// player's entry happens only here, the protocol's single sanctioned
	// multi-writer moment.
	if err := m.store.Merge(ctx, Collection, partner.UserID, matched); err != nil {
		m.log.Warn().Err(err).Str("partner", partner.UserID).Msg("partner matched update failed")
	}
	sleepCtx(ctx, m.cfg.PeerNotifyDelay)
	if err := m.store.Merge(ctx, Collection, m.userID, matched); err != nil {
		m.log.Warn().Err(err).Msg("own matched update failed")
	}

	// Grace-delayed cleanup so neither subscription is torn down before it
	// observed "matched". Uses a background context: the entries should go
	// even if this player's queue context ends first.
	selfID, partnerID := m.userID, partner.UserID
	timer := time.AfterFunc(m.cfg.CleanupGrace, func() {
		cleanupCtx := context.Background()
		if err := m.store.Delete(cleanupCtx, Collection, partnerID); err != nil {
			m.log.Warn().Err(err).Str("partner", partnerID).Msg("queue cleanup failed")
		}
		if err := m.store.Delete(cleanupCtx, Collection, selfID); err != nil {
			m.log.Warn().Err(err).Msg("queue cleanup failed")
		}
	})
	m.addDisposer(func() { timer.Stop() })
}

// onOwnSnapshot watches this player's own entry for the matched transition
// and resolves the session exactly once.
func (m *Manager) onOwnSnapshot(ctx context.Context, onMatchFound func(string)) func(docstore.Doc) {
	return func(doc docstore.Doc) {
		var e Entry
		if err := docstore.Decode(doc, &e); err != nil {
			m.log.Warn().Err(err).Msg("undecodable own queue entry")
			return
		}
		if e.Status != StatusMatched || e.MatchID == "" {
			return
		}
		m.mu.Lock()
		if m.notified {
			m.mu.Unlock()
			return
		}
		m.notified = true
		m.mu.Unlock()

		go m.resolveMatch(ctx, e.MatchID, onMatchFound)
	}
}

// resolveMatch confirms the session document exists before surfacing it.
// The matched flag can land on a queue entry before the session write
// propagates, so a miss falls back to a short-lived watch instead of
// failing.
func (m *Manager) resolveMatch(ctx context.Context, sessionID string, onMatchFound func(string)) {
	if _, err := m.store.Get(ctx, session.Collection, sessionID); err == nil {
		onMatchFound(sessionID)
		return
	}

	ready := make(chan struct{})
	var once sync.Once
	cancel, err := m.store.Watch(session.Collection, sessionID, func(docstore.Doc) {
		once.Do(func() { close(ready) })
	})
	if err != nil {
		m.log.Warn().Err(err).Str("session", sessionID).Msg("session watch failed")
		return
	}
	defer cancel()

	select {
	case <-ready:
		onMatchFound(sessionID)
	case <-ctx.Done():
	}
}

func (m *Manager) addDisposer(f func()) {
	m.mu.Lock()
	m.disposers = append(m.disposers, f)
	m.mu.Unlock()
}

// sleepCtx sleeps for d unless ctx ends first; reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
