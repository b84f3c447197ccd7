// internal/realtime/hub_test.go
package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgrid/arcade/internal/models"
)

func snapshot(id uuid.UUID, moveCount int, status models.GameStatus) *models.Game {
	return &models.Game{
		ID:        id,
		Kind:      models.KindTicTacToe,
		Status:    status,
		MoveCount: moveCount,
	}
}

// recv pulls one update or fails the test after a short wait.
func recv[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed before a value arrived")
		return v
	case <-time.After(time.Second):
		t.Fatal("no update arrived")
		panic("unreachable")
	}
}

func assertClosed[T any](t *testing.T, ch chan T) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected a closed channel")
	case <-time.After(time.Second):
		t.Fatal("channel neither closed nor readable")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	gameID := uuid.New()

	a := hub.Subscribe(gameID, 0, models.StatusActive)
	b := hub.Subscribe(gameID, 0, models.StatusActive)
	other := hub.Subscribe(uuid.New(), 0, models.StatusActive)

	hub.Publish(snapshot(gameID, 1, models.StatusActive))

	assert.Equal(t, 1, recv(t, a.Updates).MoveCount)
	assert.Equal(t, 1, recv(t, b.Updates).MoveCount)
	select {
	case <-other.Updates:
		t.Fatal("subscriber of a different game received the update")
	default:
	}

	hub.Unsubscribe(a)
	hub.Unsubscribe(b)
	hub.Unsubscribe(other)
}

func TestPublishDropsStaleVersions(t *testing.T) {
	hub := NewHub()
	gameID := uuid.New()
	sub := hub.Subscribe(gameID, 3, models.StatusActive)

	// Same version, and an older one: both filtered.
	hub.Publish(snapshot(gameID, 3, models.StatusActive))
	hub.Publish(snapshot(gameID, 2, models.StatusActive))
	select {
	case <-sub.Updates:
		t.Fatal("stale snapshot was delivered")
	default:
	}

	hub.Publish(snapshot(gameID, 4, models.StatusActive))
	assert.Equal(t, 4, recv(t, sub.Updates).MoveCount)
	hub.Unsubscribe(sub)
}

func TestStatusAdvancesTheVersionWithoutMoves(t *testing.T) {
	hub := NewHub()
	gameID := uuid.New()

	// A join flips waiting->active with MoveCount still zero; subscribers who
	// fetched the waiting row must still see it.
	sub := hub.Subscribe(gameID, 0, models.StatusWaiting)
	hub.Publish(snapshot(gameID, 0, models.StatusActive))
	assert.Equal(t, models.StatusActive, recv(t, sub.Updates).Status)

	// Replaying the same transition is now stale.
	hub.Publish(snapshot(gameID, 0, models.StatusActive))
	select {
	case <-sub.Updates:
		t.Fatal("duplicate status transition was delivered")
	default:
	}
	hub.Unsubscribe(sub)
}

func TestTerminalDeliveryTearsDownTheSubscription(t *testing.T) {
	hub := NewHub()
	gameID := uuid.New()
	sub := hub.Subscribe(gameID, 0, models.StatusActive)

	final := snapshot(gameID, 5, models.StatusFinished)
	hub.Publish(final)

	got := recv(t, sub.Updates)
	assert.Equal(t, models.StatusFinished, got.Status)
	assertClosed(t, sub.Updates)
	assert.Zero(t, hub.SubscriberCount(gameID))

	// Publishing after teardown reaches nobody and must not panic.
	hub.Publish(snapshot(gameID, 5, models.StatusFinished))
	hub.Unsubscribe(sub)
}

func TestSlowSubscriberKeepsOnlyTheLatest(t *testing.T) {
	hub := NewHub()
	gameID := uuid.New()
	sub := hub.Subscribe(gameID, 0, models.StatusActive)

	// Overrun the buffer without draining.
	for i := 1; i <= subscriberBuffer+4; i++ {
		hub.Publish(snapshot(gameID, i, models.StatusActive))
	}

	// Drain: snapshots stay in order and the newest one survived the evictions.
	last := 0
	for {
		select {
		case g := <-sub.Updates:
			assert.Greater(t, g.MoveCount, last)
			last = g.MoveCount
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer+4, last)
	hub.Unsubscribe(sub)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(uuid.New(), 0, models.StatusWaiting)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)
	assertClosed(t, sub.Updates)
}

func TestInviteFeedDeliversExactlyOnce(t *testing.T) {
	hub := NewHub()
	inv := &models.Invite{
		ID:      uuid.New(),
		Inviter: uuid.New(),
		Invitee: uuid.New(),
		Kind:    models.KindCarrom,
		Stake:   50,
		Status:  models.InvitePending,
	}
	sub := hub.SubscribeInvite(inv.ID)

	// Pending rows are not observable events.
	hub.PublishInvite(inv)
	select {
	case <-sub.Updates:
		t.Fatal("pending invite was delivered")
	default:
	}

	responded := *inv
	responded.Status = models.InviteAccepted
	responded.GameID = uuid.New()
	hub.PublishInvite(&responded)

	got := recv(t, sub.Updates)
	assert.Equal(t, models.InviteAccepted, got.Status)
	assert.Equal(t, responded.GameID, got.GameID)
	assertClosed(t, sub.Updates)

	hub.UnsubscribeInvite(sub)
	hub.UnsubscribeInvite(sub)
}
