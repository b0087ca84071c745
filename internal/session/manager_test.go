package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/injaneity/victordle/internal/docstore"
	"github.com/injaneity/victordle/internal/game"
	"github.com/injaneity/victordle/internal/player"
)

// newTestManager wires a manager over a fresh in-memory store with two
// registered players and a fixed answer word.
func newTestManager(t *testing.T, rewards Rewards) (*Manager, *player.Registry) {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory()
	reg := player.NewRegistry(store)
	for id, name := range map[string]string{"p1": "alice", "p2": "bob"} {
		if err := reg.Upsert(ctx, id, name); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	return NewManager(store, reg, rewards, func() string { return "CLASS" }), reg
}

func TestCreateGame(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, DefaultRewards)

	s, err := mgr.CreateGame(ctx, "g1", "p1", "p2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Word != "CLASS" || s.CurrentTurn != "p1" || s.Status != game.StatusWaiting {
		t.Fatalf("session = %+v", s)
	}
	if s.Players["p1"].Username != "alice" || s.Players["p2"].Username != "bob" {
		t.Fatalf("usernames not captured: %+v", s.Players)
	}
	if len(s.Players["p1"].Guesses) != 0 || len(s.Players["p2"].Guesses) != 0 {
		t.Fatal("guess logs must start empty")
	}

	// Round trips through the store intact.
	got, err := mgr.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Word != "CLASS" || got.CurrentTurn != "p1" || len(got.PlayerOrder) != 2 {
		t.Fatalf("stored session = %+v", got)
	}
}

func TestCreateGameUnknownPlayer(t *testing.T) {
	mgr, _ := newTestManager(t, DefaultRewards)
	if _, err := mgr.CreateGame(context.Background(), "g1", "p1", "ghost"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("create with unknown player = %v, want ErrNotFound", err)
	}
}

func TestSubmitGuessGuards(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, DefaultRewards)
	s, _ := mgr.CreateGame(ctx, "g1", "p1", "p2")

	if err := mgr.SubmitGuess(ctx, s, "p2", "QUERY"); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("out of turn = %v, want ErrNotYourTurn", err)
	}
	if err := mgr.SubmitGuess(ctx, s, "p1", "CAT"); !errors.Is(err, ErrInvalidGuess) {
		t.Fatalf("short guess = %v, want ErrInvalidGuess", err)
	}
	if err := mgr.SubmitGuess(ctx, s, "p1", "CLAS1"); !errors.Is(err, ErrInvalidGuess) {
		t.Fatalf("non-alpha guess = %v, want ErrInvalidGuess", err)
	}

	finished := *s
	finished.Status = game.StatusFinished
	if err := mgr.SubmitGuess(ctx, &finished, "p1", "QUERY"); !errors.Is(err, ErrFinished) {
		t.Fatalf("finished game = %v, want ErrFinished", err)
	}

	stranger := *s
	stranger.CurrentTurn = "zzz"
	if err := mgr.SubmitGuess(ctx, &stranger, "zzz", "QUERY"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("unknown player = %v, want ErrUnknownPlayer", err)
	}

	full := *s
	ps := full.Players["p1"]
	for i := 0; i < game.MaxGuessesPerPlayer; i++ {
		ps.Guesses = append(ps.Guesses, game.Guess{Word: "QUERY"})
	}
	full.Players = map[string]game.PlayerState{"p1": ps, "p2": s.Players["p2"]}
	if err := mgr.SubmitGuess(ctx, &full, "p1", "QUERY"); !errors.Is(err, ErrOutOfGuesses) {
		t.Fatalf("exhausted row = %v, want ErrOutOfGuesses", err)
	}
}

func TestSubmitGuessFlipsTurnAndActivates(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, DefaultRewards)
	s, _ := mgr.CreateGame(ctx, "g1", "p1", "p2")

	if err := mgr.SubmitGuess(ctx, s, "p1", "query"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := mgr.Get(ctx, "g1")
	if got.Status != game.StatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
	if got.CurrentTurn != "p2" {
		t.Fatalf("currentTurn = %s, want p2", got.CurrentTurn)
	}
	guesses := got.Players["p1"].Guesses
	if len(guesses) != 1 || guesses[0].Word != "QUERY" || len(guesses[0].Colors) != game.WordLength {
		t.Fatalf("recorded guess = %+v", guesses)
	}
	if got.LastMoveTimestamp == 0 {
		t.Fatal("lastMoveTimestamp not set")
	}
	if len(got.Players["p2"].Guesses) != 0 {
		t.Fatal("opponent's guess log must be untouched")
	}
}

func TestSubmitGuessWinAwardsScores(t *testing.T) {
	ctx := context.Background()
	mgr, reg := newTestManager(t, GenerousRewards)
	s, _ := mgr.CreateGame(ctx, "g1", "p1", "p2")

	if err := mgr.SubmitGuess(ctx, s, "p1", "QUERY"); err != nil {
		t.Fatalf("p1 guess: %v", err)
	}
	s, _ = mgr.Get(ctx, "g1")
	if err := mgr.SubmitGuess(ctx, s, "p2", "CLASS"); err != nil {
		t.Fatalf("p2 winning guess: %v", err)
	}

	got, _ := mgr.Get(ctx, "g1")
	if !got.Finished() {
		t.Fatalf("status = %s, want finished", got.Status)
	}
	// Winner keeps the turn marker; nothing flips after a finish.
	if got.CurrentTurn != "p2" {
		t.Fatalf("currentTurn = %s, want p2", got.CurrentTurn)
	}

	winner, _ := reg.Get(ctx, "p2")
	loser, _ := reg.Get(ctx, "p1")
	if winner.Score != GenerousRewards.Win {
		t.Fatalf("winner score = %d, want %d", winner.Score, GenerousRewards.Win)
	}
	if loser.Score != GenerousRewards.Consolation {
		t.Fatalf("loser score = %d, want %d", loser.Score, GenerousRewards.Consolation)
	}
}

func TestSubmitGuessDrawOnRowExhaustion(t *testing.T) {
	ctx := context.Background()
	rewards := Rewards{Win: 10, Draw: 2}
	mgr, reg := newTestManager(t, rewards)
	s, _ := mgr.CreateGame(ctx, "g1", "p1", "p2")

	// Alternate wrong guesses; the 11th is p1's 6th and ends the game.
	turn := []string{"p1", "p2"}
	for i := 0; i < 11; i++ {
		s, _ = mgr.Get(ctx, "g1")
		if err := mgr.SubmitGuess(ctx, s, turn[i%2], "QUERY"); err != nil {
			t.Fatalf("guess %d: %v", i+1, err)
		}
	}

	got, _ := mgr.Get(ctx, "g1")
	if !got.Finished() {
		t.Fatalf("status = %s, want finished", got.Status)
	}
	if n := len(got.Players["p1"].Guesses); n != game.MaxGuessesPerPlayer {
		t.Fatalf("p1 guesses = %d, want %d", n, game.MaxGuessesPerPlayer)
	}
	for _, id := range []string{"p1", "p2"} {
		p, _ := reg.Get(ctx, id)
		if p.Score != rewards.Draw {
			t.Fatalf("%s score = %d, want %d", id, p.Score, rewards.Draw)
		}
	}
}

func TestSubscribeToGame(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, DefaultRewards)
	s, _ := mgr.CreateGame(ctx, "g1", "p1", "p2")

	snaps := make(chan *game.Session, 16)
	cancel, err := mgr.SubscribeToGame("g1", func(g *game.Session) { snaps <- g })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	first := recvSession(t, snaps)
	if first.ID != "g1" || first.Status != game.StatusWaiting {
		t.Fatalf("initial snapshot = %+v", first)
	}

	if err := mgr.SubmitGuess(ctx, s, "p1", "QUERY"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	next := recvSession(t, snaps)
	if next.CurrentTurn != "p2" || next.Status != game.StatusActive {
		t.Fatalf("change snapshot = %+v", next)
	}
}

func TestTurnClockFlipsExpiredTurn(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, DefaultRewards)
	if _, err := mgr.CreateGame(ctx, "g1", "p1", "p2"); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock := mgr.NewTurnClock("g1", 25*time.Millisecond)
	if err := clock.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer clock.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := mgr.Get(ctx, "g1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.CurrentTurn == "p2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("turn never timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}

	clock.Stop()
	clock.Stop() // idempotent
}

func TestTurnClockStopsOnFinish(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, DefaultRewards)
	s, _ := mgr.CreateGame(ctx, "g1", "p1", "p2")

	clock := mgr.NewTurnClock("g1", 30*time.Millisecond)
	if err := clock.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer clock.Stop()

	if err := mgr.SubmitGuess(ctx, s, "p1", "CLASS"); err != nil {
		t.Fatalf("winning guess: %v", err)
	}

	// The countdown must disarm on the finished snapshot; the turn marker
	// stays where the win left it.
	time.Sleep(100 * time.Millisecond)
	got, _ := mgr.Get(ctx, "g1")
	if got.CurrentTurn != "p1" {
		t.Fatalf("currentTurn = %s after finish, want p1", got.CurrentTurn)
	}
}

func recvSession(t *testing.T, ch chan *game.Session) *game.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session snapshot")
		return nil
	}
}
