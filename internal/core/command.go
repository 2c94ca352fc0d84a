package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandChat persists a text message and broadcasts it. It is the default
	// for frames without a recognised command.
	CommandChat CommandKind = iota
	// CommandImage broadcasts an image message that was uploaded out of band.
	CommandImage
	// CommandTyping broadcasts a typing indicator.
	CommandTyping
	// CommandDelete broadcasts a retraction hint for a message id.
	CommandDelete
)

func (k CommandKind) String() string {
	switch k {
	case CommandChat:
		return "chat"
	case CommandImage:
		return "image"
	case CommandTyping:
		return "typing"
	case CommandDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// IsMessage reports whether the command carries user content, as opposed to a
// typing or delete signal.
func (k CommandKind) IsMessage() bool {
	return k == CommandChat || k == CommandImage
}

// Command represents an action requested by a client. Which fields are
// meaningful depends on Kind:
//
//	CommandChat:   UserID, NetID, Text
//	CommandImage:  UserID, Text, ImageURL, DateSent, MessageID
//	CommandTyping: UserID
//	CommandDelete: MessageID
type Command struct {
	Kind      CommandKind
	UserID    int64
	NetID     int64
	MessageID int64
	Text      string
	ImageURL  string
	DateSent  string
}
