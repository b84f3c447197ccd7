// internal/handlers/invite.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/models"
)

// CreateInviteHandler records a direct challenge to another user.
func CreateInviteHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			InviteeID uuid.UUID       `json:"invitee_id"`
			Kind      models.GameKind `json:"kind"`
			Stake     int64           `json:"stake"`
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

		inv, err := database.CreateInvite(r.Context(), userID, req.InviteeID, req.Kind, req.Stake)
		if err != nil {
			writeError(w, err)
			return
		}
		s.Logger.WithField("invite_id", inv.ID).WithField("invitee", inv.Invitee).
			Info("invite created")
		writeJSON(w, http.StatusCreated, inv)
	}
}

// inviteResponse is returned from RespondInviteHandler: the resolved invite
// plus, on acceptance, the freshly created active game.
type inviteResponse struct {
	Invite *models.Invite `json:"invite"`
	Game   *models.Game   `json:"game,omitempty"`
}

// RespondInviteHandler applies the invitee's accept or decline. A
// double-click resolves to one effective response; the second call gets the
// typed already_responded rejection. The inviter's invite feed is notified
// after commit.
func RespondInviteHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authedUser(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		var req struct {
			InviteID uuid.UUID `json:"invite_id"`
			Accept   bool      `json:"accept"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		inv, g, err := database.RespondToInvite(r.Context(), userID, req.InviteID, req.Accept)
		if err != nil {
			writeError(w, err)
			return
		}
		s.Hub.PublishInvite(inv)
		s.Logger.WithField("invite_id", inv.ID).WithField("status", inv.Status).
			Info("invite resolved")
		writeJSON(w, http.StatusOK, inviteResponse{Invite: inv, Game: g})
	}
}

// GetInviteHandler returns the current invite row; used for the fetch half
// of fetch-then-subscribe on invite feeds.
func GetInviteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	inviteID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid invite id", http.StatusBadRequest)
		return
	}
	inv, err := database.GetInvite(r.Context(), inviteID)
	if err != nil {
		writeError(w, err)
		return
	}
	if userID != inv.Inviter && userID != inv.Invitee {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// ListInvitesHandler returns the caller's open incoming challenges.
func ListInvitesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := authedUser(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	invites, err := database.ListPendingInvites(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}
