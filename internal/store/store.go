package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNetNotFound is returned when a message references a net that does not exist.
	ErrNetNotFound = errors.New("net not found")
	// ErrAuthorNotFound is returned when a message references an unknown author.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrUserNotFound is returned when a user lookup by id or name finds nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrMessageNotFound is returned when a message lookup by id finds nothing.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNetExists is returned when creating a net whose name is taken.
	ErrNetExists = errors.New("net already exists")
	// ErrUserExists is returned when creating a user whose username is taken.
	ErrUserExists = errors.New("user already exists")
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile holds the presentation settings of a user.
type Profile struct {
	UserID   int64
	ImageURL string
	// TypingIndicator lets others see when the user is typing.
	TypingIndicator bool
	// OnlineIndicator lets others see when the user is online.
	OnlineIndicator bool
}

// Identity is the read-only projection used to decorate outgoing chat events.
type Identity struct {
	Username string
	ImageURL string
}

// Net represents a chat room row.
type Net struct {
	ID        int64
	Name      string
	OwnerID   *int64
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID       int64
	NetID    int64
	AuthorID int64
	Content  string
	DateSent time.Time
}

// UserStore handles user and profile persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password and an empty profile.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetProfile returns the profile of a user; ImageURL is empty when unset.
	GetProfile(ctx context.Context, userID int64) (*Profile, error)

	// UpdateProfile replaces the avatar URL and indicator preferences of profile.UserID.
	UpdateProfile(ctx context.Context, profile Profile) error
}

// NetStore handles net persistence.
type NetStore interface {
	// CreateNet creates a new net.
	CreateNet(ctx context.Context, name string, ownerID *int64) (*Net, error)

	// GetNetByID retrieves a net by ID.
	GetNetByID(ctx context.Context, id int64) (*Net, error)

	// ListNets lists all nets ordered by id.
	ListNets(ctx context.Context) ([]*Net, error)
}

// MessageStore handles message persistence and author identity lookups.
type MessageStore interface {
	// AppendMessage inserts a message and returns its new id.
	// Identical calls produce distinct rows.
	AppendMessage(ctx context.Context, netID, authorID int64, content string, sentAt time.Time) (int64, error)

	// GetMessage retrieves a message by id.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// ResolveIdentity returns the display name and avatar URL of a user.
	ResolveIdentity(ctx context.Context, userID int64) (Identity, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	NetStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
