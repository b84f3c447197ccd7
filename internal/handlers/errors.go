// internal/handlers/errors.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/playgrid/arcade/internal/game"
)

// errorBody is the wire shape of every protocol-level rejection:
// a stable machine code plus a human-readable message.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeError maps a typed protocol rejection to its HTTP status and JSON
// body. Anything that is not a protocol error is an internal failure and is
// reported without leaking detail.
func writeError(w http.ResponseWriter, err error) {
	var pe *game.ProtocolError
	if !errors.As(err, &pe) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusConflict
	switch pe.Code {
	case "insufficient_balance":
		status = http.StatusPaymentRequired
	case "not_participant":
		status = http.StatusForbidden
	case "not_found":
		status = http.StatusNotFound
	case "invalid_state":
		status = http.StatusBadRequest
	case "not_your_turn", "already_matched", "already_responded", "game_over", "wrong_status":
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Code: pe.Code, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
