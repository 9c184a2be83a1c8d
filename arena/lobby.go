package arena

import (
	"github.com/jonboulle/clockwork"

	"github.com/dropfour/connect_four/game"
)

// Conn is one live client connection as the arena sees it. The websocket
// layer implements it; tests substitute fakes.
type Conn interface {
	ID() string
	Send(v any) error
}

// waiter is the single pending matchmaking entry. The fallback timer's
// callback captures the *waiter pointer and re-checks it against the slot
// at fire time, so a timer surviving a pairing (or a later reuse of the
// slot) is a no-op.
type waiter struct {
	conn   Conn
	player game.PlayerRef
	timer  clockwork.Timer
}

// lobby is the capacity-one matchmaking queue. It does no locking of its
// own: every method runs inside an arena step.
type lobby struct {
	pending *waiter
}

func (l *lobby) put(w *waiter) {
	l.pending = w
}

// take clears and returns the pending waiter, stopping its fallback timer.
func (l *lobby) take() *waiter {
	w := l.pending
	l.pending = nil
	if w != nil && w.timer != nil {
		w.timer.Stop()
	}
	return w
}

// cancel clears the slot iff c is the pending waiter.
func (l *lobby) cancel(c Conn) bool {
	if l.pending == nil || l.pending.conn.ID() != c.ID() {
		return false
	}
	l.take()
	return true
}
