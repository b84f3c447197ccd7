// internal/game/rules_test.go
package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tttPayload(t *testing.T, board [9]string, turn string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(TicTacToeState{Board: board, CurrentTurn: turn})
	require.NoError(t, err)
	return raw
}

func TestTicTacToeLegalMove(t *testing.T) {
	prev := tttPayload(t, [9]string{}, markX)
	next := tttPayload(t, [9]string{4: markX}, markO)

	canonical, out, err := applyTicTacToe(prev, next, markX)
	require.NoError(t, err)
	assert.False(t, out.Terminal)

	var st TicTacToeState
	require.NoError(t, json.Unmarshal(canonical, &st))
	assert.Equal(t, markX, st.Board[4])
	assert.Equal(t, markO, st.CurrentTurn, "turn mark must flip to the opponent")
}

func TestTicTacToeRejectsIllegalTransitions(t *testing.T) {
	base := [9]string{0: markX, 1: markO}
	prev := tttPayload(t, base, markX)

	cases := []struct {
		name  string
		board [9]string
	}{
		{"no move", base},
		{"two cells at once", [9]string{0: markX, 1: markO, 2: markX, 3: markX}},
		{"overwriting opponent", [9]string{0: markX, 1: markX}},
		{"placing opponent mark", [9]string{0: markX, 1: markO, 2: markO}},
		{"erasing a cell", [9]string{0: markX}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := applyTicTacToe(prev, tttPayload(t, tc.board, markO), markX)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestTicTacToeRejectsMalformedCells(t *testing.T) {
	prev := tttPayload(t, [9]string{}, markX)
	_, _, err := applyTicTacToe(prev, json.RawMessage(`{"board":["Z","","","","","","","",""]}`), markX)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _, err = applyTicTacToe(prev, json.RawMessage(`{bad json`), markX)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTicTacToeDetectsWin(t *testing.T) {
	prev := tttPayload(t, [9]string{0: markX, 1: markX, 3: markO, 4: markO}, markX)
	next := tttPayload(t, [9]string{0: markX, 1: markX, 2: markX, 3: markO, 4: markO}, markO)

	_, out, err := applyTicTacToe(prev, next, markX)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.False(t, out.Draw)
	assert.Equal(t, markX, out.WinnerMark)
}

func TestTicTacToeDetectsDraw(t *testing.T) {
	// X O X / X O O / O X _ , X plays the last cell: no line, board full.
	prev := tttPayload(t, [9]string{markX, markO, markX, markX, markO, markO, markO, markX, ""}, markX)
	next := tttPayload(t, [9]string{markX, markO, markX, markX, markO, markO, markO, markX, markX}, markO)

	_, out, err := applyTicTacToe(prev, next, markX)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.True(t, out.Draw)
	assert.Empty(t, out.WinnerMark)
}

func carromPayload(t *testing.T, s CarromState) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return raw
}

// pocket removes the piece with the given id and credits the mover.
func pocket(s CarromState, id int, player1 bool) CarromState {
	var kept []CarromPiece
	value := 0
	for _, p := range s.Pieces {
		if p.ID == id {
			if p.Color == "queen" {
				value = queenValue
			} else {
				value = coinValue
			}
			continue
		}
		kept = append(kept, p)
	}
	s.Pieces = kept
	if player1 {
		s.Score.Player1 += value
	} else {
		s.Score.Player2 += value
	}
	return s
}

func TestCarromPocketingScoresTheMover(t *testing.T) {
	opening := NewCarromState()
	next := pocket(opening, 1, true)

	_, out, err := applyCarrom(carromPayload(t, opening), carromPayload(t, next), true)
	require.NoError(t, err)
	assert.False(t, out.Terminal)
}

func TestCarromQueenIsWorthFive(t *testing.T) {
	opening := NewCarromState()
	next := pocket(opening, 0, false) // queen has id 0

	_, out, err := applyCarrom(carromPayload(t, opening), carromPayload(t, next), false)
	require.NoError(t, err)
	assert.False(t, out.Terminal)
	assert.Equal(t, queenValue, next.Score.Player2)
}

func TestCarromRejectsInventedPieces(t *testing.T) {
	opening := NewCarromState()
	next := opening
	next.Pieces = append([]CarromPiece{}, opening.Pieces...)
	next.Pieces = append(next.Pieces, CarromPiece{ID: 99, X: 10, Y: 10, Color: "white"})

	_, _, err := applyCarrom(carromPayload(t, opening), carromPayload(t, next), true)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCarromRejectsScoreTampering(t *testing.T) {
	opening := NewCarromState()

	// Claiming points without pocketing anything.
	inflated := opening
	inflated.Score.Player1 = 7
	_, _, err := applyCarrom(carromPayload(t, opening), carromPayload(t, inflated), true)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Touching the opponent's score.
	crossed := pocket(opening, 1, false)
	_, _, err = applyCarrom(carromPayload(t, opening), carromPayload(t, crossed), true)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCarromRejectsOffBoardPositions(t *testing.T) {
	opening := NewCarromState()
	moved := opening
	moved.Pieces = append([]CarromPiece{}, opening.Pieces...)
	moved.Pieces[1].X = BoardSize + 1

	_, _, err := applyCarrom(carromPayload(t, opening), carromPayload(t, moved), true)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCarromClearedBoardEndsTheGame(t *testing.T) {
	var s CarromState
	s.Pieces = []CarromPiece{{ID: 1, X: 50, Y: 50, Color: "white"}}
	s.Score.Player1 = 9
	s.Score.Player2 = 9

	final := pocket(s, 1, true)
	_, out, err := applyCarrom(carromPayload(t, s), carromPayload(t, final), true)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, "player1", out.WinnerMark)
}

func TestCarromEqualScoresDraw(t *testing.T) {
	var s CarromState
	s.Pieces = []CarromPiece{{ID: 1, X: 50, Y: 50, Color: "white"}}
	s.Score.Player1 = 8
	s.Score.Player2 = 9

	final := pocket(s, 1, true)
	_, out, err := applyCarrom(carromPayload(t, s), carromPayload(t, final), true)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.True(t, out.Draw)
}

func TestOpeningLayouts(t *testing.T) {
	carrom := NewCarromState()
	assert.Len(t, carrom.Pieces, 19, "queen plus eighteen coins")
	require.NoError(t, ValidateState("carrom", carromPayload(t, carrom)))

	raw, err := InitialState("tic_tac_toe")
	require.NoError(t, err)
	require.NoError(t, ValidateState("tic_tac_toe", raw))

	var ttt TicTacToeState
	require.NoError(t, json.Unmarshal(raw, &ttt))
	assert.Equal(t, markX, ttt.CurrentTurn, "creator's mark opens")
}
