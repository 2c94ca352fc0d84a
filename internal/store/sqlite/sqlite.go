package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/netchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
// Writes go through a single connection; reads of a file database use their
// own pool so lookups are not queued behind an open write transaction.
type SQLiteStore struct {
	db   *sql.DB
	read *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

const readPoolSize = 4

func open(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	return db, nil
}

func inMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// openPools opens the writer and, for file databases, a query-only reader pool.
// An in-memory database exists per connection, so it gets a single shared one.
func openPools(dbPath string) (*SQLiteStore, error) {
	// A single writer also keeps ":memory:" databases alive.
	db, err := open(dbPath+"?_journal_mode=WAL&_busy_timeout=5000", 1)
	if err != nil {
		return nil, err
	}
	if inMemory(dbPath) {
		return &SQLiteStore{db: db, read: db}, nil
	}

	read, err := open(dbPath+"?_busy_timeout=5000&_query_only=true", readPoolSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, read: read}, nil
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup creates a new SQLite store and runs a setup function on the writer.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := openPools(dbPath)
	if err != nil {
		return nil, err
	}

	// The writer goes first so WAL mode is set before any reader connects.
	if err := s.db.Ping(); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	if err := s.read.Ping(); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping sqlite reader: %w", err)
	}

	return s, nil
}

// ApplySchema creates the tables used by the store. Safe to run repeatedly.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema to the opened database.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connections.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if s.read != s.db {
		err = errors.Join(err, s.read.Close())
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password and an empty profile.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?, ?)`, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO profiles (user_id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.read.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.read.QueryRowContext(ctx, query, username))
}

// GetProfile returns the profile of a user.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID int64) (*store.Profile, error) {
	query := `
		SELECT u.id, COALESCE(p.image_url, ''), COALESCE(p.typing_indicator, 1), COALESCE(p.online_indicator, 1)
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.id = ?
	`
	var profile store.Profile
	err := s.read.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID, &profile.ImageURL, &profile.TypingIndicator, &profile.OnlineIndicator,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, store.ErrUserNotFound)
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &profile, nil
}

// UpdateProfile replaces the avatar URL and indicator preferences of a user.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, profile store.Profile) error {
	if _, err := s.GetUserByID(ctx, profile.UserID); err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (user_id, image_url, typing_indicator, online_indicator) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			image_url = excluded.image_url,
			typing_indicator = excluded.typing_indicator,
			online_indicator = excluded.online_indicator
	`
	_, err := s.db.ExecContext(ctx, query, profile.UserID, profile.ImageURL, profile.TypingIndicator, profile.OnlineIndicator)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// ==== NetStore implementation ====

// CreateNet creates a new net.
func (s *SQLiteStore) CreateNet(ctx context.Context, name string, ownerID *int64) (*store.Net, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO nets (name, owner_id) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrNetExists
		}
		return nil, fmt.Errorf("insert net: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetNetByID(ctx, id)
}

// GetNetByID retrieves a net by ID.
func (s *SQLiteStore) GetNetByID(ctx context.Context, id int64) (*store.Net, error) {
	query := `
		SELECT id, name, owner_id, created_at
		FROM nets
		WHERE id = ?
	`
	var net store.Net
	var ownerID sql.NullInt64
	err := s.read.QueryRowContext(ctx, query, id).Scan(&net.ID, &net.Name, &ownerID, &net.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNetNotFound
		}
		return nil, fmt.Errorf("query net: %w", err)
	}
	if ownerID.Valid {
		net.OwnerID = &ownerID.Int64
	}
	return &net, nil
}

// ListNets lists all nets ordered by id.
func (s *SQLiteStore) ListNets(ctx context.Context) ([]*store.Net, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT id, name, owner_id, created_at FROM nets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query nets: %w", err)
	}
	defer rows.Close()

	var nets []*store.Net
	for rows.Next() {
		var net store.Net
		var ownerID sql.NullInt64
		if err := rows.Scan(&net.ID, &net.Name, &ownerID, &net.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan net: %w", err)
		}
		if ownerID.Valid {
			owner := ownerID.Int64
			net.OwnerID = &owner
		}
		nets = append(nets, &net)
	}

	return nets, rows.Err()
}

// ==== MessageStore implementation ====

func exists(ctx context.Context, tx *sql.Tx, query string, id int64) (bool, error) {
	var found int
	err := tx.QueryRowContext(ctx, query, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AppendMessage inserts a message and returns its new id.
func (s *SQLiteStore) AppendMessage(ctx context.Context, netID, authorID int64, content string, sentAt time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := exists(ctx, tx, `SELECT 1 FROM nets WHERE id = ?`, netID)
	if err != nil {
		return 0, fmt.Errorf("query net: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("net %d: %w", netID, store.ErrNetNotFound)
	}

	ok, err = exists(ctx, tx, `SELECT 1 FROM users WHERE id = ?`, authorID)
	if err != nil {
		return 0, fmt.Errorf("query author: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("user %d: %w", authorID, store.ErrAuthorNotFound)
	}

	query := `
		INSERT INTO messages (net_id, author_id, content, date_sent)
		VALUES (?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query, netID, authorID, content, sentAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetMessage retrieves a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, net_id, author_id, content, date_sent
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.read.QueryRowContext(ctx, query, id).Scan(&msg.ID, &msg.NetID, &msg.AuthorID, &msg.Content, &msg.DateSent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrMessageNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &msg, nil
}

// ResolveIdentity returns the display name and avatar URL of a user.
// ImageURL is empty when the user never set an avatar.
func (s *SQLiteStore) ResolveIdentity(ctx context.Context, userID int64) (store.Identity, error) {
	query := `
		SELECT u.username, COALESCE(p.image_url, '')
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.id = ?
	`
	var identity store.Identity
	err := s.read.QueryRowContext(ctx, query, userID).Scan(&identity.Username, &identity.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Identity{}, fmt.Errorf("user %d: %w", userID, store.ErrUserNotFound)
		}
		return store.Identity{}, fmt.Errorf("query identity: %w", err)
	}
	return identity, nil
}
