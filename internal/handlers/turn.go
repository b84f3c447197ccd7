// internal/handlers/turn.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/cache"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/models"
)

// SubmitTurnHandler commits one proposed move through the transactional
// turn procedure, then fans the new authoritative row out to both players'
// feeds and queues the move for the ledger.
func SubmitTurnHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			GameID uuid.UUID       `json:"game_id"`
			State  json.RawMessage `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		g, outcome, err := database.SubmitTurn(r.Context(), userID, req.GameID, req.State)
		if err != nil {
			writeError(w, err)
			return
		}

		s.Hub.Publish(g)

		// Ledger append is best-effort and off the request path; the
		// authoritative row is already committed.
		if cache.Rdb != nil {
			record := models.MoveRecord{
				GameID:    g.ID,
				Seq:       g.MoveCount,
				Mover:     userID,
				Payload:   g.State,
				Timestamp: g.UpdatedAt.UnixMilli(),
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := cache.PublishMove(ctx, record); err != nil {
					s.Logger.Warnf("failed to queue move record for game %s: %v", record.GameID, err)
				}
			}()
		}

		if outcome.Terminal {
			s.Logger.WithField("game_id", g.ID).WithField("winner", g.Winner).
				Info("game finished")
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// ListMovesHandler returns a game's committed move ledger, oldest first.
func ListMovesHandler(w http.ResponseWriter, r *http.Request) {
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
	if !g.HasPlayer(userID) {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}
	moves, err := database.ListMoves(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moves)
}
