// internal/game/state.go
package game

import (
	"encoding/json"
	"fmt"

	"github.com/playgrid/arcade/internal/models"
)

// Board geometry for carrom, in normalized units. Piece centers must stay
// inside [0, BoardSize] on both axes.
const BoardSize = 100.0

// Carrom piece point values.
const (
	coinValue  = 1
	queenValue = 5
)

// CarromPiece is one coin on the board. Color is "white", "black" or "queen".
type CarromPiece struct {
	ID    int     `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// CarromState is the opaque payload for carrom games. Piece positions are
// client-computed by the physics layer and accepted as-is once they pass
// structural validation; only pocketing (piece removal) and scoring are
// checked server-side.
type CarromState struct {
	Pieces  []CarromPiece `json:"pieces"`
	Striker struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"striker"`
	Score struct {
		Player1 int `json:"player1"`
		Player2 int `json:"player2"`
	} `json:"score"`
}

// TicTacToeState is the opaque payload for tic-tac-toe games. Board holds
// nine cells, each "", "X" or "O", row-major. CurrentTurn mirrors the mark
// whose turn it is; the server overwrites it on every committed move, the
// client-sent value is ignored.
type TicTacToeState struct {
	Board       [9]string `json:"board"`
	CurrentTurn string    `json:"current_turn"`
}

// NewTicTacToeState returns the empty opening board. X (the creator's mark)
// moves first.
func NewTicTacToeState() TicTacToeState {
	return TicTacToeState{CurrentTurn: markX}
}

// NewCarromState returns the opening layout: the queen at center, ringed by
// nine white and nine black coins, striker at the near baseline.
func NewCarromState() CarromState {
	var s CarromState
	c := BoardSize / 2
	s.Pieces = append(s.Pieces, CarromPiece{ID: 0, X: c, Y: c, Color: "queen"})
	// Inner ring of 6, outer ring of 12, alternating colors.
	ring := func(startID int, radius float64, count int) {
		for i := 0; i < count; i++ {
			angle := float64(i) / float64(count)
			color := "white"
			if (startID+i)%2 == 1 {
				color = "black"
			}
			s.Pieces = append(s.Pieces, CarromPiece{
				ID:    startID + i,
				X:     c + radius*cosTurn(angle),
				Y:     c + radius*sinTurn(angle),
				Color: color,
			})
		}
	}
	ring(1, 5.2, 6)
	ring(7, 10.4, 12)
	s.Striker.X = c
	s.Striker.Y = BoardSize * 0.92
	return s
}

// InitialState encodes the opening payload for a freshly created game.
func InitialState(kind models.GameKind) (json.RawMessage, error) {
	var v any
	switch kind {
	case models.KindCarrom:
		v = NewCarromState()
	case models.KindTicTacToe:
		v = NewTicTacToeState()
	default:
		return nil, fmt.Errorf("unknown game kind %q", kind)
	}
	return json.Marshal(v)
}

// decodeCarrom parses and structurally checks a carrom payload: known
// colors, exactly one queen at most, unique ids, coordinates on the board.
func decodeCarrom(raw json.RawMessage) (*CarromState, error) {
	var s CarromState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalidState(err.Error())
	}
	seen := make(map[int]bool, len(s.Pieces))
	queens := 0
	for _, p := range s.Pieces {
		if seen[p.ID] {
			return nil, invalidState(fmt.Sprintf("duplicate piece id %d", p.ID))
		}
		seen[p.ID] = true
		switch p.Color {
		case "white", "black":
		case "queen":
			queens++
		default:
			return nil, invalidState(fmt.Sprintf("piece %d has unknown color %q", p.ID, p.Color))
		}
		if p.X < 0 || p.X > BoardSize || p.Y < 0 || p.Y > BoardSize {
			return nil, invalidState(fmt.Sprintf("piece %d is off the board", p.ID))
		}
	}
	if queens > 1 {
		return nil, invalidState("more than one queen")
	}
	if s.Score.Player1 < 0 || s.Score.Player2 < 0 {
		return nil, invalidState("negative score")
	}
	return &s, nil
}

// decodeTicTacToe parses and structurally checks a tic-tac-toe payload.
func decodeTicTacToe(raw json.RawMessage) (*TicTacToeState, error) {
	var s TicTacToeState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalidState(err.Error())
	}
	for i, cell := range s.Board {
		switch cell {
		case "", markX, markO:
		default:
			return nil, invalidState(fmt.Sprintf("cell %d holds %q", i, cell))
		}
	}
	return &s, nil
}

// ValidateState checks that raw is a structurally valid payload for kind,
// independent of any previous state. Used when accepting rows from storage.
func ValidateState(kind models.GameKind, raw json.RawMessage) error {
	switch kind {
	case models.KindCarrom:
		_, err := decodeCarrom(raw)
		return err
	case models.KindTicTacToe:
		_, err := decodeTicTacToe(raw)
		return err
	}
	return fmt.Errorf("unknown game kind %q", kind)
}

// cosTurn and sinTurn evaluate cos/sin of a full-turn fraction using a small
// fixed table so opening layouts are bit-for-bit deterministic across hosts.
func cosTurn(frac float64) float64 { return turnTable(frac) }
func sinTurn(frac float64) float64 { return turnTable(frac + 0.75) }

func turnTable(frac float64) float64 {
	steps := [...]float64{1, 0.866, 0.5, 0, -0.5, -0.866, -1, -0.866, -0.5, 0, 0.5, 0.866}
	idx := int(frac*12+0.5) % 12
	if idx < 0 {
		idx += 12
	}
	return steps[idx]
}
