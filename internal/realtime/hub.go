// internal/realtime/hub.go
//
// In-process change feed. The feed handler subscribes per game row; every
// committed mutation is published here after the transaction commits and
// fans out to all subscribers of that row. Publishes are ordered by
// (MoveCount, Status): a publish that is older than what a subscriber
// already saw is dropped, so delayed goroutines can never roll a client
// backwards.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/models"
)

// subscriberBuffer bounds each subscription channel. A slow consumer has its
// oldest pending snapshot evicted rather than blocking the publisher; only
// the latest row matters since every snapshot is the whole authoritative
// state.
const subscriberBuffer = 8

// Subscription is one listener on one game row. Updates carries full Game
// snapshots in version order. Close it with Hub.Unsubscribe; Updates is
// closed then, or after a terminal row has been delivered.
type Subscription struct {
	ID      uuid.UUID
	GameID  uuid.UUID
	Updates chan *models.Game

	lastVersion int
	lastStatus  models.GameStatus
	closed      bool
}

// Hub is the per-process fanout registry.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[uuid.UUID]*Subscription // gameID -> subID -> sub

	invites inviteHub
}

func NewHub() *Hub {
	return &Hub{
		subs:    make(map[uuid.UUID]map[uuid.UUID]*Subscription),
		invites: inviteHub{subs: make(map[uuid.UUID]map[uuid.UUID]*InviteSubscription)},
	}
}

// Subscribe registers a listener for one game row. The seen arguments are
// the MoveCount and Status the caller already holds from its initial fetch;
// anything not strictly newer is filtered out. Join, cancel and forfeit
// mutate Status without advancing MoveCount, which is why Status is part of
// the version.
func (h *Hub) Subscribe(gameID uuid.UUID, seenVersion int, seenStatus models.GameStatus) *Subscription {
	sub := &Subscription{
		ID:          uuid.New(),
		GameID:      gameID,
		Updates:     make(chan *models.Game, subscriberBuffer),
		lastVersion: seenVersion,
		lastStatus:  seenStatus,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[uuid.UUID]*Subscription)
	}
	h.subs[gameID][sub.ID] = sub
	return sub
}

// Unsubscribe removes the listener and closes its channel. Safe to call
// multiple times and unconditionally on teardown.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	if m, ok := h.subs[sub.GameID]; ok {
		delete(m, sub.ID)
		if len(m) == 0 {
			delete(h.subs, sub.GameID)
		}
	}
	close(sub.Updates)
}

// Publish fans a committed row out to every subscriber of that game,
// skipping subscribers that already saw this version or a newer one. After
// a terminal row is delivered the subscription is torn down: terminal means
// no further mutation, so there is nothing left to stream.
func (h *Hub) Publish(g *models.Game) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[g.ID] {
		if !NewerThan(g, sub.lastVersion, sub.lastStatus) {
			continue
		}
		sub.lastVersion = g.MoveCount
		sub.lastStatus = g.Status
		for {
			select {
			case sub.Updates <- g:
			default:
				// Full buffer: evict the oldest snapshot and retry.
				select {
				case <-sub.Updates:
				default:
				}
				continue
			}
			break
		}
		if g.Status.Terminal() {
			h.removeLocked(sub)
		}
	}
}

// SubscriberCount reports how many listeners one game currently has.
func (h *Hub) SubscriberCount(gameID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// NewerThan orders rows by MoveCount, then by lifecycle progress for equal
// move counts.
func NewerThan(g *models.Game, version int, status models.GameStatus) bool {
	if g.MoveCount != version {
		return g.MoveCount > version
	}
	return statusRank(g.Status) > statusRank(status)
}

func statusRank(s models.GameStatus) int {
	switch s {
	case models.StatusWaiting:
		return 0
	case models.StatusActive:
		return 1
	default: // finished, abandoned
		return 2
	}
}
