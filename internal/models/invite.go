// internal/models/invite.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteStatus transitions pending -> accepted or pending -> declined,
// one-way, exactly once.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Invite is a direct challenge between two specific users, parallel to open
// matchmaking. An accepted invite always carries the id of the Game created
// in the same transaction as the acceptance.
type Invite struct {
	ID      uuid.UUID    `json:"id"`
	Inviter uuid.UUID    `json:"inviter"`
	Invitee uuid.UUID    `json:"invitee"`
	Kind    GameKind     `json:"kind"`
	Stake   int64        `json:"stake"`
	Status  InviteStatus `json:"status"`
	GameID  uuid.UUID    `json:"game_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
