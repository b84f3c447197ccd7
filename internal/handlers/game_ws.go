// internal/handlers/game_ws.go
//
// The realtime change feed. One WebSocket subscription covers exactly one
// game row (or one invite row); every message is a full authoritative
// snapshot for the client to adopt wholesale. The handler always fetches the
// current row before streaming, so a change committed between row creation
// and subscription is never missed — including rows that are already
// terminal by the time the client connects.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/middleware"
	"github.com/playgrid/arcade/internal/models"
	"github.com/playgrid/arcade/internal/realtime"
	"github.com/sirupsen/logrus"
)

const feedWriteTimeout = 3 * time.Second

// feedEnvelope is the wire shape of every feed message.
type feedEnvelope struct {
	Type   string         `json:"type"` // "game" or "invite"
	Game   *models.Game   `json:"game,omitempty"`
	Invite *models.Invite `json:"invite,omitempty"`
}

// GameFeedHandler streams authoritative Game rows for /game/feed/{id}.
func GameFeedHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		// Register interest before the snapshot fetch: anything committed
		// in between arrives on the channel and is deduplicated below.
		sub := s.Hub.Subscribe(gameID, -1, models.StatusWaiting)
		defer s.Hub.Unsubscribe(sub)

		g, err := database.GetGame(r.Context(), gameID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !g.HasPlayer(userID) {
			http.Error(w, "not a participant", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"feed"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")
		if c.Subprotocol() != "feed" {
			c.Close(websocket.StatusPolicyViolation, "client must use the 'feed' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		// The client never sends application messages on the feed;
		// CloseRead surfaces connection teardown as context cancellation.
		ctx := c.CloseRead(r.Context())

		if err := writeFeed(ctx, c, feedEnvelope{Type: "game", Game: g}); err != nil {
			return
		}
		if g.Status.Terminal() {
			c.Close(websocket.StatusNormalClosure, "game over")
			return
		}

		lastVersion, lastStatus := g.MoveCount, g.Status
		for {
			select {
			case <-ctx.Done():
				middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, ctx.Err())
				return
			case update, ok := <-sub.Updates:
				if !ok {
					return
				}
				if !realtime.NewerThan(update, lastVersion, lastStatus) {
					continue
				}
				lastVersion, lastStatus = update.MoveCount, update.Status
				if err := writeFeed(ctx, c, feedEnvelope{Type: "game", Game: update}); err != nil {
					logger.Warnf("feed write failed for game %s: %v", gameID, err)
					return
				}
				if update.Status.Terminal() {
					c.Close(websocket.StatusNormalClosure, "game over")
					return
				}
			}
		}
	}
}

// InviteFeedHandler streams the one-shot invite resolution for
// /invite/feed/{id}. Only the two parties may listen.
func InviteFeedHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		sub := s.Hub.SubscribeInvite(inviteID)
		defer s.Hub.UnsubscribeInvite(sub)

		inv, err := database.GetInvite(r.Context(), inviteID)
		if err != nil {
			writeError(w, err)
			return
		}
		if userID != inv.Inviter && userID != inv.Invitee {
			http.Error(w, "not a participant", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"feed"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for invite %s: %v", inviteID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx := c.CloseRead(r.Context())

		if err := writeFeed(ctx, c, feedEnvelope{Type: "invite", Invite: inv}); err != nil {
			return
		}
		if inv.Status != models.InvitePending {
			c.Close(websocket.StatusNormalClosure, "invite resolved")
			return
		}

		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, ctx.Err())
		case update, ok := <-sub.Updates:
			if !ok {
				return
			}
			if err := writeFeed(ctx, c, feedEnvelope{Type: "invite", Invite: update}); err != nil {
				return
			}
			c.Close(websocket.StatusNormalClosure, "invite resolved")
		}
	}
}

func writeFeed(ctx context.Context, c *websocket.Conn, env feedEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}
