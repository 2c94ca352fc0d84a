package core

import "sync"

// Room groups clients subscribed to the same net.
type Room struct {
	Name string

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast offers an event to every client in the room and returns how many accepted it.
// A client whose buffer is full misses the event.
func (r *Room) Broadcast(event *Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for client := range r.clients {
		select {
		case client.Events <- event:
			delivered++
		default:
			// Drop if slow consumer.
		}
	}
	return delivered
}

// Len returns the number of clients in the room.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return r.Len() == 0
}
