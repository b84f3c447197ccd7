// internal/handlers/match.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/models"
)

var validKinds = map[models.GameKind]bool{
	models.KindCarrom:    true,
	models.KindTicTacToe: true,
}

// FindMatchHandler joins a waiting game of the requested kind and stake or
// creates a new one. When a join happens the creator's subscribed feed gets
// the activated row pushed immediately after commit.
func FindMatchHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			Kind  models.GameKind `json:"kind"`
			Stake int64           `json:"stake"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if !validKinds[req.Kind] {
			http.Error(w, "invalid game kind", http.StatusBadRequest)
			return
		}
		if req.Stake <= 0 {
			http.Error(w, "stake must be positive", http.StatusBadRequest)
			return
		}

		res, err := database.FindOrCreateMatch(r.Context(), userID, req.Kind, req.Stake)
		if err != nil {
			writeError(w, err)
			return
		}
		if res.Joined {
			s.Hub.Publish(res.Game)
		}
		s.Logger.WithField("game_id", res.Game.ID).WithField("joined", res.Joined).
			Info("matchmaking resolved")
		writeJSON(w, http.StatusOK, res)
	}
}

// CancelMatchHandler abandons a still-waiting game and refunds the stake. A
// caller who lost the race against a joiner gets the typed already_matched
// rejection and should treat the game as live.
func CancelMatchHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			GameID uuid.UUID `json:"game_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		g, err := database.CancelMatchmaking(r.Context(), userID, req.GameID)
		if err != nil {
			writeError(w, err)
			return
		}
		s.Hub.Publish(g)
		s.Logger.WithField("game_id", g.ID).Info("matchmaking cancelled")
		writeJSON(w, http.StatusOK, g)
	}
}

// GetGameHandler returns the current authoritative row. Clients fetch this
// before subscribing so a change committed before the subscription was
// established is never missed.
func GetGameHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	gameID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	g, err := database.GetGame(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	// Spectating is not a feature; only the two seats may read the row.
	if !g.HasPlayer(userID) && g.Status != models.StatusWaiting {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
