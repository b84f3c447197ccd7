// internal/models/game.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GameKind tags which mini-game a row belongs to.
type GameKind string

const (
	KindCarrom    GameKind = "carrom"
	KindTicTacToe GameKind = "tic_tac_toe"
)

// GameStatus is the lifecycle tag of a Game row.
type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusActive    GameStatus = "active"
	StatusFinished  GameStatus = "finished"
	StatusAbandoned GameStatus = "abandoned"
)

// Terminal reports whether no further mutation of the row is permitted.
func (s GameStatus) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// Game is one match instance. The State payload is opaque to the transport
// and storage layers; only internal/game interprets it.
//
// Invariants:
//   - waiting  => PlayerB and CurrentTurn are Nil
//   - active   => both players set, CurrentTurn equals one of them
//   - finished/abandoned => immutable
//   - Stake never changes after creation
type Game struct {
	ID          uuid.UUID       `json:"id"`
	Kind        GameKind        `json:"kind"`
	Status      GameStatus      `json:"status"`
	PlayerA     uuid.UUID       `json:"player_a"`
	PlayerB     uuid.UUID       `json:"player_b,omitempty"`
	CurrentTurn uuid.UUID       `json:"current_turn,omitempty"`
	Stake       int64           `json:"stake"`
	Currency    string          `json:"currency"`
	State       json.RawMessage `json:"state"`
	Winner      uuid.UUID       `json:"winner,omitempty"`

	// MoveCount is incremented on every committed turn and doubles as the
	// row version for the realtime feed.
	MoveCount int `json:"move_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Opponent returns the other participant, or uuid.Nil if userID is not a player.
func (g *Game) Opponent(userID uuid.UUID) uuid.UUID {
	switch userID {
	case g.PlayerA:
		return g.PlayerB
	case g.PlayerB:
		return g.PlayerA
	}
	return uuid.Nil
}

// HasPlayer reports whether userID is one of the two seats.
func (g *Game) HasPlayer(userID uuid.UUID) bool {
	return userID == g.PlayerA || (g.PlayerB != uuid.Nil && userID == g.PlayerB)
}
