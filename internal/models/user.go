package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	// Balance is the spendable stake currency in minor units. It is mutated
	// only inside the transactional procedures that move stakes into or out
	// of a game's pot, never by client-issued writes.
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}
