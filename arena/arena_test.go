package arena

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dropfour/connect_four/events"
	"github.com/dropfour/connect_four/game"
)

const (
	testFallback = 10 * time.Second
	testGrace    = 30 * time.Second
)

type fakeConn struct {
	id   string
	mu   sync.Mutex
	msgs []any
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *fakeConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.msgs...)
}

func (c *fakeConn) starts() []events.GameStart {
	var out []events.GameStart
	for _, m := range c.messages() {
		if gs, ok := m.(events.GameStart); ok {
			out = append(out, gs)
		}
	}
	return out
}

func (c *fakeConn) lastError() (events.Error, bool) {
	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if e, ok := msgs[i].(events.Error); ok {
			return e, true
		}
	}
	return events.Error{}, false
}

func (c *fakeConn) gameOvers() []events.GameOver {
	var out []events.GameOver
	for _, m := range c.messages() {
		if g, ok := m.(events.GameOver); ok {
			out = append(out, g)
		}
	}
	return out
}

type fakeStore struct {
	mu    sync.Mutex
	saved []*game.Match
}

func (s *fakeStore) SaveFinishedGame(_ context.Context, m *game.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, m)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *fakeStore) first() *game.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[0]
}

type noopPublisher struct{}

func (noopPublisher) MatchStarted(string, [2]string)          {}
func (noopPublisher) MoveMade(string, string, int)            {}
func (noopPublisher) MatchFinished(string, string, time.Time) {}

func newTestArena() (*Arena, *clockwork.FakeClock, *fakeStore) {
	clock := clockwork.NewFakeClock()
	store := &fakeStore{}
	return New(clock, store, noopPublisher{}, testFallback, testGrace), clock, store
}

// pair joins two connections and returns the started game's id.
func pair(t *testing.T, a *Arena, cx, co *fakeConn) string {
	t.Helper()
	a.HandleJoin(cx, "alice", "id-a")
	a.HandleJoin(co, "bob", "id-b")

	sx := cx.starts()
	so := co.starts()
	require.Len(t, sx, 1)
	require.Len(t, so, 1)
	require.Equal(t, game.MarkX, sx[0].Symbol)
	require.Equal(t, game.MarkO, so[0].Symbol)
	require.Equal(t, sx[0].GameID, so[0].GameID)
	return sx[0].GameID
}

func TestTwoJoinsProduceExactlyOneMatch(t *testing.T) {
	a, clock, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}

	pair(t, a, cx, co)
	require.False(t, a.Waiting())
	require.Equal(t, 1, a.ActiveMatches())

	// the cancelled fallback timer must not spawn a bot match
	clock.Advance(testFallback)
	time.Sleep(20 * time.Millisecond)
	require.Len(t, cx.starts(), 1)
	require.Equal(t, 1, a.ActiveMatches())
}

func TestLoneJoinFallsBackToBot(t *testing.T) {
	a, clock, _ := newTestArena()
	c := &fakeConn{id: "c1"}

	a.HandleJoin(c, "alice", "id-a")
	require.True(t, a.Waiting())
	require.Empty(t, c.starts())

	clock.Advance(testFallback)

	require.Eventually(t, func() bool {
		return len(c.starts()) == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, a.Waiting())
	require.Equal(t, game.MarkX, c.starts()[0].Symbol)

	// the bot answers a human move within the same step
	a.HandleMove(c, 0)
	msgs := c.messages()
	gs, ok := msgs[len(msgs)-1].(events.GameState)
	require.True(t, ok)
	require.Equal(t, game.MarkX, gs.State.CurrentTurn)
	require.Equal(t, game.StatusActive, gs.State.Status)
}

func TestIssuedIdentityIsEchoedBack(t *testing.T) {
	a, clock, _ := newTestArena()
	c := &fakeConn{id: "c1"}

	a.HandleJoin(c, "alice", "")
	clock.Advance(testFallback)

	require.Eventually(t, func() bool {
		return len(c.starts()) == 1
	}, time.Second, 5*time.Millisecond)
	require.NotEmpty(t, c.starts()[0].Identity)
	require.NotEqual(t, game.BotIdentity, c.starts()[0].Identity)
}

func TestWaiterDisconnectCancelsMatchmaking(t *testing.T) {
	a, clock, _ := newTestArena()
	c := &fakeConn{id: "c1"}

	a.HandleJoin(c, "alice", "id-a")
	a.HandleDisconnect(c)
	require.False(t, a.Waiting())

	clock.Advance(testFallback)
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, c.starts())
	require.Equal(t, 0, a.ActiveMatches())
}

func TestSelfJoinWhileWaitingIsRejected(t *testing.T) {
	a, _, _ := newTestArena()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	a.HandleJoin(c1, "alice", "id-a")
	a.HandleJoin(c2, "alice", "id-a")

	_, gotErr := c2.lastError()
	require.True(t, gotErr)
	require.True(t, a.Waiting())
	require.Equal(t, 0, a.ActiveMatches())

	// same connection joining again under a fresh identity is no better
	a.HandleJoin(c1, "alice", "id-a2")
	_, gotErr = c1.lastError()
	require.True(t, gotErr)
	require.Equal(t, 0, a.ActiveMatches())
}

func TestBotIdentityCannotJoin(t *testing.T) {
	a, _, _ := newTestArena()
	c := &fakeConn{id: "c1"}

	a.HandleJoin(c, "impostor", game.BotIdentity)

	_, gotErr := c.lastError()
	require.True(t, gotErr)
	require.False(t, a.Waiting())
}

func TestMoveErrorsReplyOnlyToCaller(t *testing.T) {
	a, _, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	pair(t, a, cx, co)

	before := len(cx.messages())
	a.HandleMove(co, 0) // O moving first is out of turn

	e, ok := co.lastError()
	require.True(t, ok)
	require.Equal(t, game.ErrOutOfTurn.Error(), e.Message)
	require.Len(t, cx.messages(), before, "the other seat must not see the error")
}

func TestMoveBroadcastsToBothSeats(t *testing.T) {
	a, _, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	pair(t, a, cx, co)

	a.HandleMove(cx, 3)

	for _, c := range []*fakeConn{cx, co} {
		msgs := c.messages()
		gs, ok := msgs[len(msgs)-1].(events.GameState)
		require.True(t, ok)
		require.Equal(t, game.MarkO, gs.State.CurrentTurn)
	}
}

func TestFinishedMatchIsPersistedAndRetired(t *testing.T) {
	a, _, store := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	pair(t, a, cx, co)

	// X walks the floor to a horizontal win while O stacks column 6
	moves := []struct {
		c   *fakeConn
		col int
	}{
		{cx, 0}, {co, 6}, {cx, 1}, {co, 6}, {cx, 2}, {co, 6}, {cx, 3},
	}
	for _, mv := range moves {
		a.HandleMove(mv.c, mv.col)
	}

	msgs := co.messages()
	gs, ok := msgs[len(msgs)-1].(events.GameState)
	require.True(t, ok)
	require.Equal(t, game.StatusFinished, gs.State.Status)
	require.Equal(t, "alice", gs.State.Winner)

	require.Equal(t, 0, a.ActiveMatches())
	require.Eventually(t, func() bool { return store.count() == 1 },
		time.Second, 5*time.Millisecond)

	// bindings are gone: a further move is "no active game", not GameOver
	a.HandleMove(co, 0)
	e, gotErr := co.lastError()
	require.True(t, gotErr)
	require.Equal(t, "no active game", e.Message)

	// and both seats are free to queue again
	a.HandleJoin(cx, "alice", "id-a")
	a.HandleJoin(co, "bob", "id-b")
	require.Equal(t, 1, a.ActiveMatches())
}

func TestRejoinBeforeGraceRestoresSeat(t *testing.T) {
	a, clock, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	gameID := pair(t, a, cx, co)

	a.HandleDisconnect(cx)

	c3 := &fakeConn{id: "c3"}
	a.HandleRejoin(c3, gameID, "id-a")

	starts := c3.starts()
	require.Len(t, starts, 1)
	require.Equal(t, game.MarkX, starts[0].Symbol)
	require.Equal(t, gameID, starts[0].GameID)

	// the cancelled forfeit timer must not fire
	clock.Advance(testGrace)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, a.ActiveMatches())
	require.Empty(t, co.gameOvers())

	// the rejoined connection is live: it can move
	a.HandleMove(c3, 0)
	msgs := co.messages()
	_, ok := msgs[len(msgs)-1].(events.GameState)
	require.True(t, ok)
}

func TestRepeatedRejoinAcrossReloads(t *testing.T) {
	a, _, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	gameID := pair(t, a, cx, co)

	prev := cx
	for i := 0; i < 3; i++ {
		a.HandleDisconnect(prev)
		next := &fakeConn{id: "r" + string(rune('0'+i))}
		a.HandleRejoin(next, gameID, "id-a")
		require.Len(t, next.starts(), 1)
		prev = next
	}
	require.Equal(t, 1, a.ActiveMatches())
}

func TestRejoinEvictsSupersededConnection(t *testing.T) {
	a, clock, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	gameID := pair(t, a, cx, co)

	// the seat's identity rejoins on a fresh connection while cx is still
	// bound, e.g. a new browser tab racing the old one
	c3 := &fakeConn{id: "c3"}
	a.HandleRejoin(c3, gameID, "id-a")
	require.Len(t, c3.starts(), 1)

	// the stale connection dropping must not start a grace window against
	// the player who just rejoined
	a.HandleDisconnect(cx)
	clock.Advance(testGrace)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, a.ActiveMatches())
	require.Empty(t, co.gameOvers())

	// moves flow through the fresh connection, and broadcasts skip the
	// evicted one
	before := len(cx.messages())
	a.HandleMove(c3, 0)
	msgs := co.messages()
	_, ok := msgs[len(msgs)-1].(events.GameState)
	require.True(t, ok)
	require.Len(t, cx.messages(), before)
}

func TestGraceExpiryForfeitsToTheOtherSeat(t *testing.T) {
	a, clock, store := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	gameID := pair(t, a, cx, co)

	a.HandleDisconnect(co)
	clock.Advance(testGrace)

	require.Eventually(t, func() bool {
		return len(cx.gameOvers()) == 1
	}, time.Second, 5*time.Millisecond)

	over := cx.gameOvers()[0]
	require.Equal(t, "alice", over.Winner)
	require.Equal(t, "forfeit", over.Reason)
	require.Equal(t, 0, a.ActiveMatches())

	require.Eventually(t, func() bool { return store.count() == 1 },
		time.Second, 5*time.Millisecond)
	saved := store.first()
	require.Equal(t, game.StatusFinished, saved.Status)
	require.Equal(t, "id-a", saved.Winner.Identity)

	// rejoining after the window fired is rejected
	c3 := &fakeConn{id: "c3"}
	a.HandleRejoin(c3, gameID, "id-b")
	msgs := c3.messages()
	require.Len(t, msgs, 1)
	_, ok := msgs[0].(events.RejoinFailed)
	require.True(t, ok)
}

func TestRejoinUnknownMatchOrIdentityRejected(t *testing.T) {
	a, _, _ := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	gameID := pair(t, a, cx, co)

	c3 := &fakeConn{id: "c3"}
	a.HandleRejoin(c3, "no-such-game", "id-a")
	a.HandleRejoin(c3, gameID, "id-z")

	msgs := c3.messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		_, ok := m.(events.RejoinFailed)
		require.True(t, ok)
	}
}

func TestBothSeatsDroppingSettlesOnce(t *testing.T) {
	a, clock, store := newTestArena()
	cx := &fakeConn{id: "c1"}
	co := &fakeConn{id: "c2"}
	pair(t, a, cx, co)

	a.HandleDisconnect(cx)
	a.HandleDisconnect(co)
	clock.Advance(testGrace)

	require.Eventually(t, func() bool { return a.ActiveMatches() == 0 },
		time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return store.count() == 1 },
		time.Second, 5*time.Millisecond)

	// the second timer fired against a retired match and did nothing
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, store.count())
}
