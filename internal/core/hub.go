package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Router delivers an event to every subscriber of a room.
// The Hub routes within the process; other implementations fan out across nodes.
type Router interface {
	Broadcast(ctx context.Context, room string, event *Event) error
}

// Hub is the registry of live rooms and their subscribers.
// Rooms appear on first join and disappear when their last client leaves.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *zerolog.Logger
}

var _ Router = (*Hub)(nil)

// NewHub creates an empty registry. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		rooms: make(map[string]*Room),
		log:   logger,
	}
}

// Join subscribes the client to its room. Joining twice is a no-op.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.Room]
	if !ok {
		room = NewRoom(c.Room)
		h.rooms[c.Room] = room
	}
	if room.AddClient(c) {
		h.log.Debug().Str("net_id", c.Room).Str("client_id", c.ID).Int("members", room.Len()).Msg("client joined")
	}
}

// Leave unsubscribes the client from its room. Leaving a room the client is not in is a no-op.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.Room]
	if !ok {
		return
	}
	if room.RemoveClient(c) {
		h.log.Debug().Str("net_id", c.Room).Str("client_id", c.ID).Int("members", room.Len()).Msg("client left")
	}
	if room.Empty() {
		delete(h.rooms, c.Room)
	}
}

// Broadcast delivers the event to every current member of room, the sender included.
// Members that cannot accept the event right away miss it.
func (h *Hub) Broadcast(_ context.Context, room string, event *Event) error {
	h.mu.RLock()
	r, ok := h.rooms[room]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	delivered := r.Broadcast(event)
	if members := r.Len(); delivered < members {
		h.log.Warn().Str("net_id", room).Int("members", members).Int("delivered", delivered).
			Str("event", event.Kind.String()).Msg("dropped event for slow clients")
	}
	return nil
}

// Members returns the number of clients subscribed to room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	r, ok := h.rooms[room]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return r.Len()
}

// Rooms returns the number of rooms with at least one member.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
