// internal/syncclient/client.go
//
// The game-side client façade. It wraps the server's match, invite and turn
// procedures plus the realtime feed behind plain Go calls, so the
// presentation layer never touches the transport. Reconciliation contract:
// every incoming row replaces local state wholesale (the server is always
// authoritative), the terminal row is surfaced exactly once, and a dropped
// feed is recovered by re-fetching the current row before re-subscribing —
// never by assuming the last submission was applied.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/models"
	"github.com/playgrid/arcade/internal/realtime"
	"github.com/sirupsen/logrus"
)

// APIError is a typed rejection from the server, carrying the stable reason
// code from the protocol error taxonomy.
type APIError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Msg    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server rejected request (%s): %s", e.Code, e.Msg)
}

// Client talks to one arcade server on behalf of one authenticated user.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *logrus.Logger

	// RedialWait paces reconnection attempts after a dropped feed.
	RedialWait time.Duration
}

// New builds a client for baseURL (e.g. "http://localhost:8080") using the
// given session token.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
		Logger:     logrus.New(),
		RedialWait: time.Second,
	}
}

// MatchResult mirrors the server's matchmaking answer.
type MatchResult struct {
	Joined bool         `json:"joined"`
	Game   *models.Game `json:"game"`
}

// FindOrCreateMatch joins a waiting game of this kind and stake, or creates
// one and leaves the caller waiting for an opponent.
func (c *Client) FindOrCreateMatch(ctx context.Context, kind models.GameKind, stake int64) (*MatchResult, error) {
	var res MatchResult
	err := c.doJSON(ctx, http.MethodPost, "/match/find",
		map[string]any{"kind": kind, "stake": stake}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelMatchmaking abandons a still-waiting game. An already_matched
// rejection means an opponent joined first; the caller should treat the
// game as live and subscribe to it.
func (c *Client) CancelMatchmaking(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	var g models.Game
	err := c.doJSON(ctx, http.MethodPost, "/match/cancel",
		map[string]any{"game_id": gameID}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateInvite challenges a specific user.
func (c *Client) CreateInvite(ctx context.Context, invitee uuid.UUID, kind models.GameKind, stake int64) (*models.Invite, error) {
	var inv models.Invite
	err := c.doJSON(ctx, http.MethodPost, "/invite/create",
		map[string]any{"invitee_id": invitee, "kind": kind, "stake": stake}, &inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// InviteOutcome is the result of responding to an invite: the resolved
// invite and, on acceptance, the backing game.
type InviteOutcome struct {
	Invite *models.Invite `json:"invite"`
	Game   *models.Game   `json:"game,omitempty"`
}

// RespondToInvite accepts or declines an incoming challenge.
func (c *Client) RespondToInvite(ctx context.Context, inviteID uuid.UUID, accept bool) (*InviteOutcome, error) {
	var out InviteOutcome
	err := c.doJSON(ctx, http.MethodPost, "/invite/respond",
		map[string]any{"invite_id": inviteID, "accept": accept}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTurn proposes the client's resolved next state for the game. The
// returned row is the committed authoritative state, which may differ from
// the proposal only in server-owned fields (turn, status, winner).
func (c *Client) SubmitTurn(ctx context.Context, gameID uuid.UUID, state any) (*models.Game, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var g models.Game
	err = c.doJSON(ctx, http.MethodPost, "/game/turn",
		map[string]any{"game_id": gameID, "state": json.RawMessage(raw)}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FetchGame reads the current authoritative row.
func (c *Client) FetchGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	var g models.Game
	if err := c.doJSON(ctx, http.MethodGet, "/game/"+gameID.String(), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// FetchInvite reads the current invite row.
func (c *Client) FetchInvite(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error) {
	var inv models.Invite
	if err := c.doJSON(ctx, http.MethodGet, "/invite/"+inviteID.String(), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// SubscribeToGame streams authoritative rows to onUpdate until the game
// reaches a terminal state or ctx is cancelled. The first delivery is
// always a fresh fetch (so nothing committed before the subscription is
// missed), every later one comes from the feed, and stale or duplicate rows
// are dropped. The terminal row is delivered exactly once; after that the
// subscription is torn down and SubscribeToGame returns nil.
func (c *Client) SubscribeToGame(ctx context.Context, gameID uuid.UUID, onUpdate func(*models.Game)) error {
	lastVersion := -1
	lastStatus := models.StatusWaiting

	deliver := func(g *models.Game) bool {
		if !realtime.NewerThan(g, lastVersion, lastStatus) {
			return g.Status.Terminal()
		}
		lastVersion, lastStatus = g.MoveCount, g.Status
		onUpdate(g)
		return g.Status.Terminal()
	}

	for {
		// Fetch first: the row may already be past anything the feed will
		// ever tell us, including already terminal.
		g, err := c.FetchGame(ctx, gameID)
		if err != nil {
			return err
		}
		if deliver(g) {
			return nil
		}

		terminal, err := c.streamGame(ctx, gameID, deliver)
		if terminal {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.Logger.Warnf("game feed dropped for %s, re-syncing: %v", gameID, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.RedialWait):
		}
	}
}

// streamGame dials the feed once and forwards rows to deliver until the
// connection drops or a terminal row arrives.
func (c *Client) streamGame(ctx context.Context, gameID uuid.UUID, deliver func(*models.Game) bool) (terminal bool, err error) {
	conn, _, err := websocket.Dial(ctx, c.wsURL("/game/feed/"+gameID.String()), &websocket.DialOptions{
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + c.Token}},
		Subprotocols: []string{"feed"},
	})
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "teardown")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return false, nil
			}
			return false, err
		}
		var env struct {
			Type string       `json:"type"`
			Game *models.Game `json:"game"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return false, fmt.Errorf("malformed feed message: %w", err)
		}
		if env.Type != "game" || env.Game == nil {
			continue
		}
		if deliver(env.Game) {
			return true, nil
		}
	}
}

// AwaitInvite blocks until the invite is accepted or declined, using the
// invite feed with the same fetch-then-subscribe discipline.
func (c *Client) AwaitInvite(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error) {
	for {
		inv, err := c.FetchInvite(ctx, inviteID)
		if err != nil {
			return nil, err
		}
		if inv.Status != models.InvitePending {
			return inv, nil
		}

		resolved, err := c.streamInvite(ctx, inviteID)
		if resolved != nil {
			return resolved, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			c.Logger.Warnf("invite feed dropped for %s, re-syncing: %v", inviteID, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RedialWait):
		}
	}
}

func (c *Client) streamInvite(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error) {
	conn, _, err := websocket.Dial(ctx, c.wsURL("/invite/feed/"+inviteID.String()), &websocket.DialOptions{
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + c.Token}},
		Subprotocols: []string{"feed"},
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "teardown")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil, nil
			}
			return nil, err
		}
		var env struct {
			Type   string         `json:"type"`
			Invite *models.Invite `json:"invite"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("malformed feed message: %w", err)
		}
		if env.Type != "invite" || env.Invite == nil {
			continue
		}
		if env.Invite.Status != models.InvitePending {
			return env.Invite, nil
		}
	}
}

// doJSON performs one request and decodes either the success payload or the
// typed error body.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Msg = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) wsURL(path string) string {
	url := c.BaseURL + path
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	return "ws://" + strings.TrimPrefix(url, "http://")
}
