// internal/game/errors.go
package game

import "errors"

// ProtocolError is a typed rejection with a stable reason code. Handlers map
// the code to an HTTP status and a JSON body; clients switch on Code, never
// on the message text.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

// Protocol rejections. These are sentinels: compare with errors.Is.
var (
	// ErrInsufficientBalance blocks the action before any row mutation.
	ErrInsufficientBalance = &ProtocolError{Code: "insufficient_balance", Message: "balance too low for this stake"}

	// ErrAlreadyMatched is returned to a canceller who lost the race against
	// a joiner: the game is active now, not abandonable.
	ErrAlreadyMatched = &ProtocolError{Code: "already_matched", Message: "an opponent already joined this game"}

	// ErrAlreadyResponded rejects a second accept/decline of the same invite.
	ErrAlreadyResponded = &ProtocolError{Code: "already_responded", Message: "invite was already responded to"}

	// ErrNotYourTurn rejects a submission from the player not holding the turn.
	ErrNotYourTurn = &ProtocolError{Code: "not_your_turn", Message: "it is not your turn"}

	// ErrNotParticipant rejects callers who are not seated in the game or
	// are not the addressee of the invite.
	ErrNotParticipant = &ProtocolError{Code: "not_participant", Message: "you are not a participant"}

	// ErrGameOver is the idempotent rejection for any mutation of a terminal
	// game. Repeated terminal submissions get this same stable answer.
	ErrGameOver = &ProtocolError{Code: "game_over", Message: "game already reached a terminal state"}

	// ErrWrongStatus rejects an operation that is only legal in another
	// lifecycle state (for example joining a game that is not waiting).
	ErrWrongStatus = &ProtocolError{Code: "wrong_status", Message: "operation not legal in the game's current status"}

	// ErrInvalidState rejects a structurally malformed proposed payload.
	ErrInvalidState = &ProtocolError{Code: "invalid_state", Message: "proposed game state is not valid"}

	// ErrNotFound is returned when the referenced game or invite row does not exist.
	ErrNotFound = &ProtocolError{Code: "not_found", Message: "no such row"}
)

// CodeOf extracts the stable reason code from err, or "" if err is not a
// protocol rejection.
func CodeOf(err error) string {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// invalidState wraps a structural validation failure with detail while still
// matching ErrInvalidState via errors.Is.
func invalidState(detail string) error {
	return &detailedError{base: ErrInvalidState, detail: detail}
}

type detailedError struct {
	base   *ProtocolError
	detail string
}

func (e *detailedError) Error() string { return e.base.Message + ": " + e.detail }

func (e *detailedError) Is(target error) bool { return target == e.base }

func (e *detailedError) As(target any) bool {
	if p, ok := target.(**ProtocolError); ok {
		*p = e.base
		return true
	}
	return false
}
