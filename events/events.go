// Package events defines the connection-level wire protocol: a closed set
// of tagged JSON variants in each direction. Inbound payloads are validated
// here so malformed messages never reach the match or matchmaking logic.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/dropfour/connect_four/game"
)

const (
	TypeJoin     = "join"
	TypeMakeMove = "makeMove"
	TypeRejoin   = "rejoin"

	TypeGameStart    = "gameStart"
	TypeGameState    = "gameState"
	TypeGameOver     = "gameOver"
	TypeRejoinFailed = "rejoinFailed"
	TypeError        = "error"
)

type Join struct {
	Username string `json:"username"`
	// Identity is empty on a first join; the server issues one and echoes
	// it back in gameStart.
	Identity string `json:"identity,omitempty"`
}

type MakeMove struct {
	Column *int `json:"column"`
}

type Rejoin struct {
	GameID   string `json:"gameId"`
	Identity string `json:"identity"`
}

// Decode parses one inbound frame into its variant, rejecting unknown types
// and missing or out-of-range fields.
func Decode(data []byte) (any, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed message: %v", err)
	}

	switch env.Type {
	case TypeJoin:
		var msg Join
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed join: %v", err)
		}
		if msg.Username == "" {
			return nil, fmt.Errorf("join requires a username")
		}
		return msg, nil
	case TypeMakeMove:
		var msg MakeMove
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed makeMove: %v", err)
		}
		if msg.Column == nil {
			return nil, fmt.Errorf("makeMove requires a column")
		}
		if *msg.Column < 0 || *msg.Column >= game.Cols {
			return nil, fmt.Errorf("column %d out of range", *msg.Column)
		}
		return msg, nil
	case TypeRejoin:
		var msg Rejoin
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed rejoin: %v", err)
		}
		if msg.GameID == "" || msg.Identity == "" {
			return nil, fmt.Errorf("rejoin requires gameId and identity")
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

type GameStart struct {
	Type     string     `json:"type"`
	Symbol   game.Mark  `json:"symbol"`
	State    game.State `json:"state"`
	GameID   string     `json:"gameId"`
	Identity string     `json:"identity"`
}

func NewGameStart(symbol game.Mark, state game.State, gameID, identity string) GameStart {
	return GameStart{Type: TypeGameStart, Symbol: symbol, State: state, GameID: gameID, Identity: identity}
}

type GameState struct {
	Type  string     `json:"type"`
	State game.State `json:"state"`
}

func NewGameState(state game.State) GameState {
	return GameState{Type: TypeGameState, State: state}
}

type GameOver struct {
	Type   string `json:"type"`
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

func NewGameOver(winner, reason string) GameOver {
	return GameOver{Type: TypeGameOver, Winner: winner, Reason: reason}
}

type RejoinFailed struct {
	Type string `json:"type"`
}

func NewRejoinFailed() RejoinFailed {
	return RejoinFailed{Type: TypeRejoinFailed}
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
