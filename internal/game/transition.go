// internal/game/transition.go
//
// The Game row state machine:
//
//	waiting --[join]--> active --[terminal move]--> finished
//	waiting --[cancel]--> abandoned
//	active  --[forfeit/timeout]--> finished
//
// Transitions mutate the row in place and must run under the storage row
// lock (or any equivalent exclusive section); they never touch balances
// themselves — Settlement tells the caller what to pay out inside the same
// transaction.
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/models"
)

// NewMatch builds a fresh waiting game with the creator in seat A and the
// opening payload for the kind. The creator's stake is reserved into the pot
// by the surrounding transaction at the moment of creation.
func NewMatch(creator uuid.UUID, kind models.GameKind, stake int64, currency string, now time.Time) (*models.Game, error) {
	state, err := InitialState(kind)
	if err != nil {
		return nil, err
	}
	return &models.Game{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    models.StatusWaiting,
		PlayerA:   creator,
		Stake:     stake,
		Currency:  currency,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewInviteGame builds the active game backing an accepted invite. The
// inviter takes seat A and, like every creator, moves first.
func NewInviteGame(inviter, invitee uuid.UUID, kind models.GameKind, stake int64, currency string, now time.Time) (*models.Game, error) {
	g, err := NewMatch(inviter, kind, stake, currency, now)
	if err != nil {
		return nil, err
	}
	g.PlayerB = invitee
	g.Status = models.StatusActive
	g.CurrentTurn = inviter
	return g, nil
}

// Join seats joiner as player B and activates the game. The creator always
// takes the first turn; both clients derive the same answer from the row, so
// no coin flip is needed.
func Join(g *models.Game, joiner uuid.UUID, now time.Time) error {
	if g.Status.Terminal() {
		return ErrGameOver
	}
	if g.Status != models.StatusWaiting {
		return ErrWrongStatus
	}
	if joiner == g.PlayerA {
		return ErrNotParticipant
	}
	g.PlayerB = joiner
	g.Status = models.StatusActive
	g.CurrentTurn = g.PlayerA
	g.UpdatedAt = now
	return nil
}

// Cancel abandons a still-waiting game. Only the creator may cancel, and
// only before anyone joined; a canceller racing a joiner gets
// ErrAlreadyMatched and the game stays active.
func Cancel(g *models.Game, caller uuid.UUID, now time.Time) error {
	if g.Status.Terminal() {
		return ErrGameOver
	}
	if g.Status == models.StatusActive {
		return ErrAlreadyMatched
	}
	if caller != g.PlayerA {
		return ErrNotParticipant
	}
	g.Status = models.StatusAbandoned
	g.UpdatedAt = now
	return nil
}

// Submit validates and applies one proposed move. On a non-terminal move the
// turn flips to the opponent; on a terminal one the game finishes and Winner
// is set (uuid.Nil for a draw). The returned Outcome mirrors what happened.
func Submit(g *models.Game, caller uuid.UUID, proposed []byte, now time.Time) (Outcome, error) {
	if g.Status.Terminal() {
		return Outcome{}, ErrGameOver
	}
	if g.Status != models.StatusActive {
		return Outcome{}, ErrWrongStatus
	}
	if !g.HasPlayer(caller) {
		return Outcome{}, ErrNotParticipant
	}
	if caller != g.CurrentTurn {
		return Outcome{}, ErrNotYourTurn
	}

	var (
		next []byte
		out  Outcome
		err  error
	)
	switch g.Kind {
	case models.KindTicTacToe:
		next, out, err = applyTicTacToe(g.State, proposed, MarkOf(g, caller))
	case models.KindCarrom:
		next, out, err = applyCarrom(g.State, proposed, caller == g.PlayerA)
	default:
		return Outcome{}, invalidState("unknown game kind")
	}
	if err != nil {
		return Outcome{}, err
	}

	g.State = next
	g.MoveCount++
	g.UpdatedAt = now
	if out.Terminal {
		g.Status = models.StatusFinished
		g.CurrentTurn = uuid.Nil
		if !out.Draw {
			g.Winner = winnerID(g, out.WinnerMark)
		}
	} else {
		g.CurrentTurn = g.Opponent(caller)
	}
	return out, nil
}

// Forfeit finishes an active game against loser, awarding the win to the
// opponent. Used by the idle-turn sweep; terminal rows are left untouched so
// a sweep racing a final move is a harmless no-op for the caller to detect.
func Forfeit(g *models.Game, loser uuid.UUID, now time.Time) error {
	if g.Status.Terminal() {
		return ErrGameOver
	}
	if g.Status != models.StatusActive {
		return ErrWrongStatus
	}
	if !g.HasPlayer(loser) {
		return ErrNotParticipant
	}
	g.Status = models.StatusFinished
	g.Winner = g.Opponent(loser)
	g.CurrentTurn = uuid.Nil
	g.UpdatedAt = now
	return nil
}

// Settlement returns the balance credits owed when a game reaches a
// terminal state. Both stakes were debited into the pot up front, so a win
// pays the winner the whole pot and a draw or abandonment refunds each
// debited player their own stake. The map is empty for non-terminal rows.
func Settlement(g *models.Game) map[uuid.UUID]int64 {
	credits := map[uuid.UUID]int64{}
	switch g.Status {
	case models.StatusFinished:
		if g.Winner != uuid.Nil {
			credits[g.Winner] = 2 * g.Stake
		} else {
			credits[g.PlayerA] = g.Stake
			credits[g.PlayerB] = g.Stake
		}
	case models.StatusAbandoned:
		credits[g.PlayerA] = g.Stake
	}
	return credits
}

// MarkOf maps a seat to its tic-tac-toe mark: creator plays X.
func MarkOf(g *models.Game, userID uuid.UUID) string {
	if userID == g.PlayerA {
		return markX
	}
	return markO
}

func winnerID(g *models.Game, winnerMark string) uuid.UUID {
	switch winnerMark {
	case markX, "player1":
		return g.PlayerA
	case markO, "player2":
		return g.PlayerB
	}
	return uuid.Nil
}
