// Package arena is the composition root for live games: it pairs waiting
// connections into matches (or seats the bot after the fallback delay),
// routes moves, and survives connection churn through the session registry.
//
// Every state transition (a connection event or a timer firing) runs as
// one step under a single mutex, so no two steps ever interleave their
// mutations. Timer callbacks re-enter through the same mutex and re-validate
// the capture they were armed against before acting.
package arena

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dropfour/connect_four/events"
	"github.com/dropfour/connect_four/game"
	"github.com/dropfour/connect_four/utils"
)

// Store persists finished matches. Failures are logged and do not roll back
// the in-memory completion.
type Store interface {
	SaveFinishedGame(ctx context.Context, m *game.Match) error
}

// Publisher emits best-effort analytics notifications; its absence (a noop
// implementation) must not affect gameplay.
type Publisher interface {
	MatchStarted(gameID string, players [2]string)
	MoveMade(gameID, player string, column int)
	MatchFinished(gameID, winner string, startedAt time.Time)
}

type Arena struct {
	mu sync.Mutex

	clock   clockwork.Clock
	matches map[string]*game.Match
	lobby   lobby
	reg     *registry

	store Store
	pub   Publisher

	fallbackDelay time.Duration
	graceDelay    time.Duration
}

func New(clock clockwork.Clock, store Store, pub Publisher, fallbackDelay, graceDelay time.Duration) *Arena {
	return &Arena{
		clock:         clock,
		matches:       make(map[string]*game.Match),
		reg:           newRegistry(),
		store:         store,
		pub:           pub,
		fallbackDelay: fallbackDelay,
		graceDelay:    graceDelay,
	}
}

// HandleJoin enters c into matchmaking. With no waiter pending, c becomes
// the waiter and the bot-fallback timer is armed; otherwise the waiter is
// paired as first-mover against c.
func (a *Arena) HandleJoin(c Conn, username, identity string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if identity == "" {
		identity = utils.GenerateUUIDString()
	}
	if identity == game.BotIdentity {
		a.send(c, events.NewError("reserved identity"))
		return
	}
	if _, bound := a.reg.lookup(c); bound {
		a.send(c, events.NewError("already in a game"))
		return
	}

	player := game.PlayerRef{Identity: identity, DisplayName: username}

	if a.lobby.pending == nil {
		w := &waiter{conn: c, player: player}
		w.timer = a.clock.AfterFunc(a.fallbackDelay, func() {
			a.fallbackFire(w)
		})
		a.lobby.put(w)
		log.Info().Str("username", username).Msg("Waiting for an opponent")
		return
	}

	if a.lobby.pending.conn.ID() == c.ID() || a.lobby.pending.player.Identity == identity {
		a.send(c, events.NewError("already waiting for an opponent"))
		return
	}

	w := a.lobby.take()
	a.startMatch(w.conn, w.player, c, player)
}

// fallbackFire is the bot-fallback timer step. The waiter pointer it
// captured must still be the pending one; a pairing or cancel in the
// interim makes this a no-op.
func (a *Arena) fallbackFire(w *waiter) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lobby.pending != w {
		return
	}
	a.lobby.pending = nil

	log.Info().Str("username", w.player.DisplayName).Msg("No opponent found, starting bot game")
	a.startMatch(w.conn, w.player, nil, game.Bot)
}

// startMatch creates and registers a match with px as first-mover. connO is
// nil when the second seat belongs to the bot.
func (a *Arena) startMatch(connX Conn, px game.PlayerRef, connO Conn, po game.PlayerRef) {
	id := utils.GenerateUUIDString()
	m := game.NewMatch(id, px, po)
	a.matches[id] = m

	a.reg.bind(connX, id, game.MarkX, px.Identity)
	if connO != nil {
		a.reg.bind(connO, id, game.MarkO, po.Identity)
	}

	state := m.State()
	a.send(connX, events.NewGameStart(game.MarkX, state, id, px.Identity))
	if connO != nil {
		a.send(connO, events.NewGameStart(game.MarkO, state, id, po.Identity))
	}

	log.Info().
		Str("gameID", id).
		Str("playerX", px.DisplayName).
		Str("playerO", po.DisplayName).
		Msg("Match started")
	a.pub.MatchStarted(id, [2]string{px.DisplayName, po.DisplayName})
}

// HandleMove applies one move for the seat bound to c. Errors go back to c
// alone; a settled state is broadcast to the whole match.
func (a *Arena) HandleMove(c Conn, column int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.reg.lookup(c)
	if !ok {
		a.send(c, events.NewError("no active game"))
		return
	}
	m := a.matches[b.matchID]
	if m == nil {
		a.send(c, events.NewError("no active game"))
		return
	}

	state, err := m.Play(b.seat, column)
	if err != nil {
		a.send(c, events.NewError(err.Error()))
		return
	}

	a.pub.MoveMade(b.matchID, m.Players[b.seat].DisplayName, column)
	a.broadcast(b.matchID, events.NewGameState(state))

	if state.Status == game.StatusFinished {
		a.retire(m)
	}
}

// HandleRejoin rebinds a fresh connection to the seat its identity owns in
// an active match, cancelling any pending forfeiture.
func (a *Arena) HandleRejoin(c Conn, gameID, identity string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := a.matches[gameID]
	if m == nil || m.Status != game.StatusActive {
		a.send(c, events.NewRejoinFailed())
		return
	}
	seat, ok := m.SeatOf(identity)
	if !ok {
		a.send(c, events.NewRejoinFailed())
		return
	}

	a.reg.cancelForfeit(timerKey{matchID: gameID, identity: identity})
	m.Disconnected[seat] = false
	a.reg.unbindSeat(gameID, identity)
	a.reg.bind(c, gameID, seat, identity)

	log.Info().Str("gameID", gameID).Str("identity", identity).Msg("Player rejoined")
	a.send(c, events.NewGameStart(seat, m.State(), gameID, identity))
}

// HandleDisconnect reacts to a transport-level drop. A pending waiter is
// simply removed from matchmaking; a seated player gets a grace window
// before the match is forfeited.
func (a *Arena) HandleDisconnect(c Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lobby.cancel(c) {
		log.Info().Str("connID", c.ID()).Msg("Waiting player left the queue")
		return
	}

	b, ok := a.reg.unbind(c)
	if !ok {
		return
	}
	m := a.matches[b.matchID]
	if m == nil || m.Status != game.StatusActive {
		return
	}

	m.Disconnected[b.seat] = true
	key := timerKey{matchID: b.matchID, identity: b.identity}
	f := &forfeit{}
	f.timer = a.clock.AfterFunc(a.graceDelay, func() {
		a.forfeitFire(key, f)
	})
	a.reg.armForfeit(key, f)

	log.Info().
		Str("gameID", b.matchID).
		Str("identity", b.identity).
		Dur("grace", a.graceDelay).
		Msg("Seat disconnected, grace window armed")
}

// forfeitFire is the grace-timer step: if the window is still the armed one
// and the match is still active, the absent seat loses.
func (a *Arena) forfeitFire(key timerKey, f *forfeit) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.reg.stillArmed(key, f) {
		return
	}
	delete(a.reg.forfeits, key)

	m := a.matches[key.matchID]
	if m == nil || m.Status != game.StatusActive {
		return
	}
	seat, ok := m.SeatOf(key.identity)
	if !ok {
		return
	}

	m.Forfeit(seat)
	log.Info().
		Str("gameID", key.matchID).
		Str("winner", m.Winner.DisplayName).
		Msg("Reconnect window expired, match forfeited")

	a.broadcast(key.matchID, events.NewGameOver(m.Winner.DisplayName, "forfeit"))
	a.retire(m)
}

// retire removes a finished match from the active set and hands it to the
// collaborators. The in-memory maps already reflect the terminal outcome
// before the persistence write is even started, so a slow or failing store
// cannot let the match be re-finished.
func (a *Arena) retire(m *game.Match) {
	delete(a.matches, m.ID)
	a.reg.dropMatch(m.ID)
	go a.persist(m)
}

func (a *Arena) persist(m *game.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.SaveFinishedGame(ctx, m); err != nil {
		log.Error().Err(err).Str("gameID", m.ID).Msg("Failed to persist finished game")
	}
	a.pub.MatchFinished(m.ID, m.Winner.DisplayName, m.StartedAt)
}

func (a *Arena) broadcast(matchID string, msg any) {
	for _, c := range a.reg.connsFor(matchID) {
		a.send(c, msg)
	}
}

func (a *Arena) send(c Conn, msg any) {
	if err := c.Send(msg); err != nil {
		log.Error().Err(err).Str("connID", c.ID()).Msg("Failed to send message")
	}
}

// ActiveMatches reports the size of the active set; surfaced by /healthz.
func (a *Arena) ActiveMatches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.matches)
}

// Waiting reports whether a player is parked in the matchmaking slot.
func (a *Arena) Waiting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lobby.pending != nil
}
