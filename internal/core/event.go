package core

// EventKind is a notification broadcast to every member of a room.
type EventKind int

const (
	// EventChatMessage carries a persisted chat message.
	EventChatMessage EventKind = iota
	// EventImageMessage carries an already uploaded image with its caption.
	EventImageMessage
	// EventTyping signals that a user is typing.
	EventTyping
	// EventDelete asks clients to retract a message.
	EventDelete
)

func (k EventKind) String() string {
	switch k {
	case EventChatMessage:
		return "chat_message"
	case EventImageMessage:
		return "image_message"
	case EventTyping:
		return "typing"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is what the dispatcher hands to the router. It carries no author identity;
// that is resolved per recipient at delivery time.
type Event struct {
	Kind      EventKind `json:"kind"`
	Room      string    `json:"room"`
	UserID    int64     `json:"user_id,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	// Message is the display-ready text (escaped, linked, <br> line breaks).
	Message  string `json:"message,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	// DateSent is client supplied and only set for image messages.
	DateSent string `json:"date_sent,omitempty"`
}
