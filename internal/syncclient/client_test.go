// internal/syncclient/client_test.go
package syncclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgrid/arcade/internal/models"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "test-token")
	c.RedialWait = 10 * time.Millisecond
	return c
}

func gameRow(id uuid.UUID, moveCount int, status models.GameStatus) *models.Game {
	return &models.Game{
		ID:        id,
		Kind:      models.KindTicTacToe,
		Status:    status,
		MoveCount: moveCount,
		Stake:     100,
		Currency:  "coins",
		State:     json.RawMessage(`{"board":["","","","","","","","",""],"current_turn":"X"}`),
	}
}

func writeGameJSON(t *testing.T, w http.ResponseWriter, g *models.Game) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(g))
}

// sendFeed pushes one feed envelope over an accepted test connection.
func sendFeed(t *testing.T, ctx context.Context, conn *websocket.Conn, g *models.Game) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": "game", "game": g})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestSubmitTurnDecodesTypedRejections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /game/turn", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"not_your_turn","error":"it is not your turn"}`))
	})
	c := testClient(t, mux)

	_, err := c.SubmitTurn(context.Background(), uuid.New(), map[string]any{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "not_your_turn", apiErr.Code)
}

func TestNonJSONErrorBodiesStillSurface(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /game/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	c := testClient(t, mux)

	_, err := c.FetchGame(context.Background(), uuid.New())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "http_error", apiErr.Code)
}

func TestFindOrCreateMatchDecodesJoinFlag(t *testing.T) {
	gid := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /match/find", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind  models.GameKind `json:"kind"`
			Stake int64           `json:"stake"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, models.KindCarrom, body.Kind)
		assert.Equal(t, int64(250), body.Stake)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(MatchResult{
			Joined: true,
			Game:   gameRow(gid, 0, models.StatusActive),
		}))
	})
	c := testClient(t, mux)

	res, err := c.FindOrCreateMatch(context.Background(), models.KindCarrom, 250)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Equal(t, gid, res.Game.ID)
}

func TestSubscribeDeliversTerminalRowFromFetchWithoutDialing(t *testing.T) {
	gid := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /game/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeGameJSON(t, w, gameRow(gid, 7, models.StatusFinished))
	})
	// No feed route: dialing would 404 and fail the subscription.
	c := testClient(t, mux)

	var got []*models.Game
	err := c.SubscribeToGame(context.Background(), gid, func(g *models.Game) {
		got = append(got, g)
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusFinished, got[0].Status)
}

func TestSubscribeStreamsRowsUntilTerminal(t *testing.T) {
	gid := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /game/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeGameJSON(t, w, gameRow(gid, 1, models.StatusActive))
	})
	mux.HandleFunc("GET /game/feed/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"feed"}})
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		// A replay of the fetched row, then real progress, then the final row.
		sendFeed(t, ctx, conn, gameRow(gid, 1, models.StatusActive))
		sendFeed(t, ctx, conn, gameRow(gid, 2, models.StatusActive))
		final := gameRow(gid, 3, models.StatusFinished)
		final.Winner = uuid.New()
		sendFeed(t, ctx, conn, final)
	})
	c := testClient(t, mux)

	var seen []int
	err := c.SubscribeToGame(context.Background(), gid, func(g *models.Game) {
		seen = append(seen, g.MoveCount)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen, "replayed row dropped, terminal row delivered once")
}

func TestSubscribeRecoversByRefetchingAfterDrop(t *testing.T) {
	gid := uuid.New()
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /game/{id}", func(w http.ResponseWriter, r *http.Request) {
		// First sync sees the game mid-flight; after the feed dies the re-fetch
		// finds it already finished.
		if fetches.Add(1) == 1 {
			writeGameJSON(t, w, gameRow(gid, 2, models.StatusActive))
			return
		}
		writeGameJSON(t, w, gameRow(gid, 4, models.StatusFinished))
	})
	mux.HandleFunc("GET /game/feed/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"feed"}})
		require.NoError(t, err)
		// Kill the feed without a close handshake.
		conn.CloseNow()
	})
	c := testClient(t, mux)

	var seen []int
	err := c.SubscribeToGame(context.Background(), gid, func(g *models.Game) {
		seen = append(seen, g.MoveCount)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, seen)
	assert.GreaterOrEqual(t, fetches.Load(), int32(2), "a dropped feed forces a re-fetch")
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	gid := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /game/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeGameJSON(t, w, gameRow(gid, 0, models.StatusWaiting))
	})
	mux.HandleFunc("GET /game/feed/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"feed"}})
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "done")
		<-r.Context().Done()
	})
	c := testClient(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeToGame(ctx, gid, func(*models.Game) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop on cancel")
	}
}

func TestAwaitInviteResolvesOverTheFeed(t *testing.T) {
	inviteID := uuid.New()
	gameID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /invite/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(&models.Invite{
			ID:     inviteID,
			Kind:   models.KindTicTacToe,
			Stake:  50,
			Status: models.InvitePending,
		}))
	})
	mux.HandleFunc("GET /invite/feed/{id}", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"feed"}})
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		data, err := json.Marshal(map[string]any{"type": "invite", "invite": &models.Invite{
			ID:     inviteID,
			Status: models.InviteAccepted,
			GameID: gameID,
		}})
		require.NoError(t, err)
		require.NoError(t, conn.Write(r.Context(), websocket.MessageText, data))
	})
	c := testClient(t, mux)

	inv, err := c.AwaitInvite(context.Background(), inviteID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteAccepted, inv.Status)
	assert.Equal(t, gameID, inv.GameID)
}

func TestAwaitInviteShortCircuitsOnAlreadyResolved(t *testing.T) {
	inviteID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /invite/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(&models.Invite{
			ID:     inviteID,
			Status: models.InviteDeclined,
		}))
	})
	c := testClient(t, mux)

	inv, err := c.AwaitInvite(context.Background(), inviteID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteDeclined, inv.Status)
}
