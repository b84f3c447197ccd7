// internal/game/rules.go
//
// Per-kind move legality and terminal detection. Everything here is pure:
// the database layer calls into it while holding the row lock, and the tests
// exercise it directly.
package game

import (
	"encoding/json"
	"fmt"
)

const (
	markX = "X"
	markO = "O"
)

// Outcome describes the result of applying one committed move.
type Outcome struct {
	Terminal bool
	Draw     bool
	// WinnerMark is "X"/"O" for tic-tac-toe, "player1"/"player2" for carrom.
	// Empty unless Terminal and not Draw.
	WinnerMark string
}

// winningLines are the eight three-in-a-row index triples.
var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// applyTicTacToe checks that proposed is prev plus exactly one new moverMark
// on a previously empty cell, then detects win or draw. On success it
// returns the canonical next payload (board as proposed, current_turn set to
// the opposing mark).
func applyTicTacToe(prev, proposed json.RawMessage, moverMark string) (json.RawMessage, Outcome, error) {
	prevState, err := decodeTicTacToe(prev)
	if err != nil {
		return nil, Outcome{}, err
	}
	next, err := decodeTicTacToe(proposed)
	if err != nil {
		return nil, Outcome{}, err
	}

	changed := -1
	for i := range next.Board {
		switch {
		case next.Board[i] == prevState.Board[i]:
		case prevState.Board[i] == "" && next.Board[i] == moverMark:
			if changed != -1 {
				return nil, Outcome{}, invalidState("more than one cell changed")
			}
			changed = i
		default:
			return nil, Outcome{}, invalidState(fmt.Sprintf("illegal transition at cell %d", i))
		}
	}
	if changed == -1 {
		return nil, Outcome{}, invalidState("no cell was played")
	}

	out := Outcome{}
	for _, line := range winningLines {
		a, b, c := next.Board[line[0]], next.Board[line[1]], next.Board[line[2]]
		if a != "" && a == b && b == c {
			out.Terminal = true
			out.WinnerMark = a
			break
		}
	}
	if !out.Terminal {
		full := true
		for _, cell := range next.Board {
			if cell == "" {
				full = false
				break
			}
		}
		if full {
			out.Terminal = true
			out.Draw = true
		}
	}

	next.CurrentTurn = otherMark(moverMark)
	canonical, err := json.Marshal(next)
	if err != nil {
		return nil, Outcome{}, err
	}
	return canonical, out, nil
}

// applyCarrom validates a client-resolved carrom frame against the previous
// one. Piece positions come from the client's physics simulation and are
// accepted as-is (a deliberate scope reduction for a casual game; it is a
// known cheating vector). What IS enforced: pieces may only disappear
// (pocketing), never appear or change color; only the mover's score may
// grow, and exactly by the point value of the pieces pocketed this turn.
func applyCarrom(prev, proposed json.RawMessage, moverIsPlayer1 bool) (json.RawMessage, Outcome, error) {
	prevState, err := decodeCarrom(prev)
	if err != nil {
		return nil, Outcome{}, err
	}
	next, err := decodeCarrom(proposed)
	if err != nil {
		return nil, Outcome{}, err
	}

	prevByID := make(map[int]CarromPiece, len(prevState.Pieces))
	for _, p := range prevState.Pieces {
		prevByID[p.ID] = p
	}
	for _, p := range next.Pieces {
		old, ok := prevByID[p.ID]
		if !ok {
			return nil, Outcome{}, invalidState(fmt.Sprintf("piece %d appeared from nowhere", p.ID))
		}
		if old.Color != p.Color {
			return nil, Outcome{}, invalidState(fmt.Sprintf("piece %d changed color", p.ID))
		}
		delete(prevByID, p.ID)
	}

	// Everything left in prevByID was pocketed this turn.
	pocketed := 0
	for _, p := range prevByID {
		if p.Color == "queen" {
			pocketed += queenValue
		} else {
			pocketed += coinValue
		}
	}

	d1 := next.Score.Player1 - prevState.Score.Player1
	d2 := next.Score.Player2 - prevState.Score.Player2
	moverDelta, otherDelta := d1, d2
	if !moverIsPlayer1 {
		moverDelta, otherDelta = d2, d1
	}
	if otherDelta != 0 {
		return nil, Outcome{}, invalidState("opponent score changed")
	}
	if moverDelta != pocketed {
		return nil, Outcome{}, invalidState(fmt.Sprintf("score delta %d does not match pocketed value %d", moverDelta, pocketed))
	}

	out := Outcome{}
	if len(next.Pieces) == 0 {
		out.Terminal = true
		switch {
		case next.Score.Player1 > next.Score.Player2:
			out.WinnerMark = "player1"
		case next.Score.Player2 > next.Score.Player1:
			out.WinnerMark = "player2"
		default:
			out.Draw = true
		}
	}

	canonical, err := json.Marshal(next)
	if err != nil {
		return nil, Outcome{}, err
	}
	return canonical, out, nil
}

func otherMark(mark string) string {
	if mark == markX {
		return markO
	}
	return markX
}
