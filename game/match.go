package game

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// BotIdentity is the reserved identity token for the built-in opponent.
// Matchmaking never queues it, so a bot-vs-bot match cannot form.
const BotIdentity = "BOT"

// PlayerRef names one seat's owner: the stable identity token plus the
// display name shown to the other player. The zero value means "nobody",
// which is how a draw's winner is represented.
type PlayerRef struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
}

func (p PlayerRef) IsBot() bool { return p.Identity == BotIdentity }

// Bot is the second-mover substituted by the matchmaking fallback.
var Bot = PlayerRef{Identity: BotIdentity, DisplayName: "BOT"}

// State is the public snapshot broadcast after every settled move.
type State struct {
	Board       Board  `json:"board"`
	CurrentTurn Mark   `json:"currentTurn"`
	Status      Status `json:"status"`
	Winner      string `json:"winner"`
}

// Match is the per-game state machine. It is not self-locking: the arena
// serializes every call to it.
type Match struct {
	ID           string
	Board        Board
	Players      map[Mark]PlayerRef
	CurrentTurn  Mark
	Status       Status
	Winner       PlayerRef
	StartedAt    time.Time
	Disconnected map[Mark]bool
}

func NewMatch(id string, playerX, playerO PlayerRef) *Match {
	return &Match{
		ID:           id,
		Players:      map[Mark]PlayerRef{MarkX: playerX, MarkO: playerO},
		CurrentTurn:  MarkX,
		Status:       StatusActive,
		StartedAt:    time.Now(),
		Disconnected: map[Mark]bool{},
	}
}

// Play applies one move for mark and then settles the board: while the
// match is still active and the seat to move belongs to the bot, it keeps
// choosing and applying bot moves. The loop is bounded by the 42 cells of
// the board, and a single human move against the bot therefore returns the
// state after the bot's reply.
func (m *Match) Play(mark Mark, column int) (State, error) {
	if err := m.apply(mark, column); err != nil {
		return State{}, err
	}
	for m.Status == StatusActive && m.Players[m.CurrentTurn].IsBot() {
		col, ok := ChooseColumn(m.Board, m.CurrentTurn, Other(m.CurrentTurn))
		if !ok {
			break
		}
		if err := m.apply(m.CurrentTurn, col); err != nil {
			break
		}
	}
	return m.State(), nil
}

func (m *Match) apply(mark Mark, column int) error {
	if m.Status != StatusActive {
		return ErrGameOver
	}
	if mark != m.CurrentTurn {
		return ErrOutOfTurn
	}
	row, err := m.Board.Drop(column, mark)
	if err != nil {
		return err
	}
	switch {
	case m.Board.CheckWin(row, column, mark):
		m.Status = StatusFinished
		m.Winner = m.Players[mark]
	case m.Board.IsDraw():
		m.Status = StatusFinished
	default:
		m.CurrentTurn = Other(mark)
	}
	return nil
}

// Forfeit finishes the match with the seat opposite leaver as winner.
// A no-op on an already finished match.
func (m *Match) Forfeit(leaver Mark) {
	if m.Status != StatusActive {
		return
	}
	m.Status = StatusFinished
	m.Winner = m.Players[Other(leaver)]
}

// SeatOf returns the seat bound to identity, if any.
func (m *Match) SeatOf(identity string) (Mark, bool) {
	for mark, p := range m.Players {
		if p.Identity == identity {
			return mark, true
		}
	}
	return Empty, false
}

func (m *Match) State() State {
	return State{
		Board:       m.Board,
		CurrentTurn: m.CurrentTurn,
		Status:      m.Status,
		Winner:      m.Winner.DisplayName,
	}
}
