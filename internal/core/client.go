package core

// DefaultClientBuffer is the event buffer size used when none is configured.
const DefaultClientBuffer = 64

// Client is one live connection subscribed to a single net.
type Client struct {
	ID   string
	Room string
	// UserID is the authenticated identity of the connection, 0 when anonymous.
	UserID int64
	// SuppressTyping drops this connection's typing signals; set from the
	// user's profile when the session opens.
	SuppressTyping bool
	Events         chan *Event
}

// NewClient constructs a client bound to room with a buffered event channel.
func NewClient(id, room string, userID int64, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Client{
		ID:     id,
		Room:   room,
		UserID: userID,
		Events: make(chan *Event, buffer),
	}
}
