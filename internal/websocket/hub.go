// Package websocket pushes entitlement changes to the signed-in browser tabs
// of the affected user.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/models"
)

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int64
}

// EntitlementEvent is the message sent after a user's VIP state changes.
type EntitlementEvent struct {
	UserID             int64      `json:"-"`
	IsVIPMember        bool       `json:"isVipMember"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
}

type Hub struct {
	Clients    map[int64]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan EntitlementEvent

	done chan struct{}
	log  logging.Logger
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{
		Clients:    make(map[int64]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan EntitlementEvent, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.Clients {
				for c := range set {
					close(c.Send)
				}
			}
			h.Clients = make(map[int64]map[*Client]struct{})
			return

		case client := <-h.Register:
			set, ok := h.Clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.Clients[client.UserID] = set
			}
			set[client] = struct{}{}
			h.log.Debug(ctx, "websocket client registered", "user_id", client.UserID)

		case client := <-h.Unregister:
			h.remove(client)

		case ev := <-h.Broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error(ctx, "marshal entitlement event failed", "error", err)
				continue
			}
			for client := range h.Clients[ev.UserID] {
				select {
				case client.Send <- data:
				default:
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.Clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.Clients, client.UserID)
	}
}

// Join registers client unless the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client. It is a no-op once the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// NotifyEntitlement queues a push for u. It never blocks; when the queue is
// full the event is dropped.
func (h *Hub) NotifyEntitlement(u *models.User) {
	ev := EntitlementEvent{
		UserID:             u.ID,
		IsVIPMember:        u.IsVIPMember,
		SubscriptionStatus: models.StringValue(u.SubscriptionStatus),
		CurrentPeriodEnd:   u.CurrentPeriodEnd,
		CancelAtPeriodEnd:  u.CancelAtPeriodEnd,
	}
	select {
	case h.Broadcast <- ev:
	case <-h.done:
	default:
		h.log.Warn(context.Background(), "entitlement event dropped", "user_id", u.ID)
	}
}
