// internal/models/move.go
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MoveRecord is one committed turn in the append-only ledger. The mutable
// Game row is a cached projection of this log; records are queued to Redis
// after commit and persisted by the historian worker.
type MoveRecord struct {
	GameID    uuid.UUID       `json:"game_id"`
	Seq       int             `json:"seq"` // game.MoveCount after the move
	Mover     uuid.UUID       `json:"mover"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}
