// internal/handlers/errors_test.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgrid/arcade/internal/game"
)

func TestWriteErrorMapsProtocolCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{game.ErrInsufficientBalance, http.StatusPaymentRequired},
		{game.ErrNotParticipant, http.StatusForbidden},
		{game.ErrNotFound, http.StatusNotFound},
		{game.ErrInvalidState, http.StatusBadRequest},
		{game.ErrNotYourTurn, http.StatusConflict},
		{game.ErrAlreadyMatched, http.StatusConflict},
		{game.ErrAlreadyResponded, http.StatusConflict},
		{game.ErrGameOver, http.StatusConflict},
		{game.ErrWrongStatus, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(game.CodeOf(tc.err), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, game.CodeOf(tc.err), body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestWriteErrorWrappedRejectionsKeepTheirCode(t *testing.T) {
	// Validation failures arrive wrapped with detail; the stable code must
	// survive the wrapping.
	err := game.ValidateState("tic_tac_toe", []byte(`{"board":["Z"]}`))
	require.Error(t, err)

	rec := httptest.NewRecorder()
	writeError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_state", body.Code)
	assert.Contains(t, body.Error, "cell 0")
}

func TestWriteErrorHidesInternalFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error\n", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
