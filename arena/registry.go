package arena

import (
	"github.com/jonboulle/clockwork"

	"github.com/dropfour/connect_four/game"
)

// binding ties a live connection to the seat it occupies.
type binding struct {
	matchID  string
	seat     game.Mark
	identity string
}

// timerKey identifies one seat's disconnect grace window. Keyed by identity
// as well as match so both seats can be in their grace window at once.
type timerKey struct {
	matchID  string
	identity string
}

// forfeit wraps a grace timer; the fire callback captures the *forfeit
// pointer and re-checks the map entry before acting, which makes a timer
// that lost the race against rejoin a guarded no-op.
type forfeit struct {
	timer clockwork.Timer
}

// registry maps connections to sessions and tracks disconnect timers.
// Like the lobby it is only touched inside arena steps.
type registry struct {
	byConn   map[string]binding
	byMatch  map[string]map[string]Conn
	forfeits map[timerKey]*forfeit
}

func newRegistry() *registry {
	return &registry{
		byConn:   make(map[string]binding),
		byMatch:  make(map[string]map[string]Conn),
		forfeits: make(map[timerKey]*forfeit),
	}
}

func (r *registry) bind(c Conn, matchID string, seat game.Mark, identity string) {
	r.byConn[c.ID()] = binding{matchID: matchID, seat: seat, identity: identity}
	conns := r.byMatch[matchID]
	if conns == nil {
		conns = make(map[string]Conn)
		r.byMatch[matchID] = conns
	}
	conns[c.ID()] = c
}

// unbind removes c's binding and returns it, if there was one.
func (r *registry) unbind(c Conn) (binding, bool) {
	b, ok := r.byConn[c.ID()]
	if !ok {
		return binding{}, false
	}
	delete(r.byConn, c.ID())
	if conns := r.byMatch[b.matchID]; conns != nil {
		delete(conns, c.ID())
		if len(conns) == 0 {
			delete(r.byMatch, b.matchID)
		}
	}
	return b, true
}

// unbindSeat evicts whatever connection currently holds identity's seat in
// matchID, so a superseded connection's later disconnect cannot arm a grace
// window against a player who already rejoined.
func (r *registry) unbindSeat(matchID, identity string) {
	for id := range r.byMatch[matchID] {
		if b, ok := r.byConn[id]; ok && b.identity == identity {
			delete(r.byConn, id)
			delete(r.byMatch[matchID], id)
		}
	}
	if len(r.byMatch[matchID]) == 0 {
		delete(r.byMatch, matchID)
	}
}

func (r *registry) lookup(c Conn) (binding, bool) {
	b, ok := r.byConn[c.ID()]
	return b, ok
}

// connsFor returns the live connections bound to a match.
func (r *registry) connsFor(matchID string) []Conn {
	conns := make([]Conn, 0, len(r.byMatch[matchID]))
	for _, c := range r.byMatch[matchID] {
		conns = append(conns, c)
	}
	return conns
}

func (r *registry) armForfeit(key timerKey, f *forfeit) {
	// a previous window for the same seat is superseded
	if old, ok := r.forfeits[key]; ok {
		old.timer.Stop()
	}
	r.forfeits[key] = f
}

func (r *registry) cancelForfeit(key timerKey) {
	if f, ok := r.forfeits[key]; ok {
		f.timer.Stop()
		delete(r.forfeits, key)
	}
}

// stillArmed reports whether f is still the live window for key; the fire
// callback must check this before forfeiting.
func (r *registry) stillArmed(key timerKey, f *forfeit) bool {
	return r.forfeits[key] == f
}

// dropMatch removes every binding and grace window tied to matchID; called
// once a match leaves the active set so its players can queue again.
func (r *registry) dropMatch(matchID string) {
	for id := range r.byMatch[matchID] {
		delete(r.byConn, id)
	}
	delete(r.byMatch, matchID)
	for key := range r.forfeits {
		if key.matchID == matchID {
			r.cancelForfeit(key)
		}
	}
}
