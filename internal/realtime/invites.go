// internal/realtime/invites.go
//
// Invite rows get the same per-row fanout as games. An invite mutates
// exactly once (pending -> accepted/declined), so every publish is
// terminal for its subscribers.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/playgrid/arcade/internal/models"
)

// InviteSubscription is one listener on one invite row, typically the
// inviter waiting for the invitee's response.
type InviteSubscription struct {
	ID      uuid.UUID
	Invite  uuid.UUID
	Updates chan *models.Invite

	closed bool
}

type inviteHub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[uuid.UUID]*InviteSubscription
}

// SubscribeInvite registers a listener for one invite row.
func (h *Hub) SubscribeInvite(inviteID uuid.UUID) *InviteSubscription {
	sub := &InviteSubscription{
		ID:      uuid.New(),
		Invite:  inviteID,
		Updates: make(chan *models.Invite, 1),
	}
	h.invites.mu.Lock()
	defer h.invites.mu.Unlock()
	if h.invites.subs[inviteID] == nil {
		h.invites.subs[inviteID] = make(map[uuid.UUID]*InviteSubscription)
	}
	h.invites.subs[inviteID][sub.ID] = sub
	return sub
}

// UnsubscribeInvite removes the listener and closes its channel. Safe to
// call multiple times.
func (h *Hub) UnsubscribeInvite(sub *InviteSubscription) {
	if sub == nil {
		return
	}
	h.invites.mu.Lock()
	defer h.invites.mu.Unlock()
	h.removeInviteLocked(sub)
}

func (h *Hub) removeInviteLocked(sub *InviteSubscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	if m, ok := h.invites.subs[sub.Invite]; ok {
		delete(m, sub.ID)
		if len(m) == 0 {
			delete(h.invites.subs, sub.Invite)
		}
	}
	close(sub.Updates)
}

// PublishInvite delivers the responded invite to every listener and tears
// the subscriptions down; there is nothing further to observe on the row.
func (h *Hub) PublishInvite(inv *models.Invite) {
	if inv.Status == models.InvitePending {
		return
	}
	h.invites.mu.Lock()
	defer h.invites.mu.Unlock()
	for _, sub := range h.invites.subs[inv.ID] {
		select {
		case sub.Updates <- inv:
		default:
		}
		h.removeInviteLocked(sub)
	}
}
