package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loopchat/loopchat-server/internal/store"
)

// Schema is the full database schema. Applied on startup; every
// statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id       INTEGER NOT NULL,
	receiver_id     INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	text            TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT NOT NULL DEFAULT '',
	attachment_name TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_pair
	ON messages(sender_id, receiver_id, id);

CREATE TABLE IF NOT EXISTS group_messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id        TEXT NOT NULL,
	sender_id       INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	text            TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT NOT NULL DEFAULT '',
	attachment_name TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	FOREIGN KEY (sender_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_group_messages_group
	ON group_messages(group_id, id);

CREATE TABLE IF NOT EXISTS group_message_reads (
	message_id INTEGER NOT NULL,
	user_id    INTEGER NOT NULL,
	read_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (message_id, user_id),
	FOREIGN KEY (message_id) REFERENCES group_messages(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS friends (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	friend_id  INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, friend_id),
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (friend_id) REFERENCES users(id)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection. This also
	// serializes appends, which keeps message ids in persistence order.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function
// after the schema is applied. Useful for tests to seed fixtures.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ListUsers lists all users except the given one, oldest first.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeUserID int64) ([]*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id != ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage appends a direct message and fills in its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if err := msg.Content.Validate(); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (sender_id, receiver_id, kind, text, attachment_url, attachment_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.SenderID,
		msg.ReceiverID,
		string(msg.Content.Kind),
		msg.Content.Text,
		msg.Content.URL,
		msg.Content.Filename,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListConversation returns all messages exchanged between two users,
// ascending by creation order.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB int64) ([]*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, kind, text, attachment_url, attachment_name, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var kind string
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&kind,
			&msg.Content.Text,
			&msg.Content.URL,
			&msg.Content.Filename,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Content.Kind = store.ContentKind(kind)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// SaveGroupMessage appends a group message and fills in its ID.
func (s *SQLiteStore) SaveGroupMessage(ctx context.Context, msg *store.GroupMessage) error {
	if err := msg.Content.Validate(); err != nil {
		return err
	}
	if msg.GroupID == "" {
		msg.GroupID = store.GeneralGroupID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO group_messages (group_id, sender_id, kind, text, attachment_url, attachment_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.GroupID,
		msg.SenderID,
		string(msg.Content.Kind),
		msg.Content.Text,
		msg.Content.URL,
		msg.Content.Filename,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert group message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListGroupMessages returns all messages of a group ascending by creation
// order, each with its read set.
func (s *SQLiteStore) ListGroupMessages(ctx context.Context, groupID string) ([]*store.GroupMessage, error) {
	query := `
		SELECT id, group_id, sender_id, kind, text, attachment_url, attachment_name, created_at
		FROM group_messages
		WHERE group_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.GroupMessage
	byID := make(map[int64]*store.GroupMessage)
	for rows.Next() {
		var msg store.GroupMessage
		var kind string
		if err := rows.Scan(
			&msg.ID,
			&msg.GroupID,
			&msg.SenderID,
			&kind,
			&msg.Content.Text,
			&msg.Content.URL,
			&msg.Content.Filename,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan group message: %w", err)
		}
		msg.Content.Kind = store.ContentKind(kind)
		messages = append(messages, &msg)
		byID[msg.ID] = messages[len(messages)-1]
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return messages, nil
	}

	readQuery := `
		SELECT r.message_id, r.user_id
		FROM group_message_reads r
		JOIN group_messages m ON m.id = r.message_id
		WHERE m.group_id = ?
		ORDER BY r.read_at ASC
	`
	readRows, err := s.db.QueryContext(ctx, readQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group message reads: %w", err)
	}
	defer readRows.Close()

	for readRows.Next() {
		var messageID, userID int64
		if err := readRows.Scan(&messageID, &userID); err != nil {
			return nil, fmt.Errorf("scan group message read: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.ReadBy = append(msg.ReadBy, userID)
		}
	}

	return messages, readRows.Err()
}

// MarkGroupMessageRead records that a user has read a group message.
func (s *SQLiteStore) MarkGroupMessageRead(ctx context.Context, messageID, userID int64) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM group_messages WHERE id = ?`, messageID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group message %d: %w", messageID, store.ErrNotFound)
		}
		return fmt.Errorf("query group message: %w", err)
	}

	query := `
		INSERT OR IGNORE INTO group_message_reads (message_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, messageID, userID); err != nil {
		return fmt.Errorf("insert group message read: %w", err)
	}

	return nil
}

// ==== FriendStore implementation ====

// CreateFriendRequest creates a new friend request (pending status).
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, userID, friendID int64) (*store.Friend, error) {
	query := `
		INSERT INTO friends (user_id, friend_id, status)
		VALUES (?, ?, 'pending')
	`
	result, err := s.db.ExecContext(ctx, query, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getFriendByID(ctx, id)
}

// getFriendByID is a helper to retrieve a friend record by ID.
func (s *SQLiteStore) getFriendByID(ctx context.Context, id int64) (*store.Friend, error) {
	query := `
		SELECT id, user_id, friend_id, status, created_at, updated_at
		FROM friends
		WHERE id = ?
	`
	var friend store.Friend
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&friend.ID,
		&friend.UserID,
		&friend.FriendID,
		&status,
		&friend.CreatedAt,
		&friend.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("friend %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query friend: %w", err)
	}
	friend.Status = store.FriendStatus(status)
	return &friend, nil
}

// UpdateFriendStatus updates the status of a friendship.
func (s *SQLiteStore) UpdateFriendStatus(ctx context.Context, userID, friendID int64, status store.FriendStatus) error {
	query := `
		UPDATE friends
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND friend_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), userID, friendID)
	if err != nil {
		return fmt.Errorf("update friend status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("friendship %d->%d: %w", userID, friendID, store.ErrNotFound)
	}
	return nil
}

// GetFriendship retrieves a friendship between two users (in either direction).
func (s *SQLiteStore) GetFriendship(ctx context.Context, userID, friendID int64) (*store.Friend, error) {
	query := `
		SELECT id, user_id, friend_id, status, created_at, updated_at
		FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`
	var friend store.Friend
	var status string
	err := s.db.QueryRowContext(ctx, query, userID, friendID, friendID, userID).Scan(
		&friend.ID,
		&friend.UserID,
		&friend.FriendID,
		&status,
		&friend.CreatedAt,
		&friend.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("friendship %d-%d: %w", userID, friendID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query friendship: %w", err)
	}
	friend.Status = store.FriendStatus(status)
	return &friend, nil
}

// ListFriends lists friendships for a user, optionally filtered by status.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID int64, status *store.FriendStatus) ([]*store.Friend, error) {
	var query string
	var args []interface{}

	if status != nil {
		query = `
			SELECT id, user_id, friend_id, status, created_at, updated_at
			FROM friends
			WHERE (user_id = ? OR friend_id = ?) AND status = ?
			ORDER BY updated_at DESC
		`
		args = []interface{}{userID, userID, string(*status)}
	} else {
		query = `
			SELECT id, user_id, friend_id, status, created_at, updated_at
			FROM friends
			WHERE user_id = ? OR friend_id = ?
			ORDER BY updated_at DESC
		`
		args = []interface{}{userID, userID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	var friends []*store.Friend
	for rows.Next() {
		var friend store.Friend
		var statusStr string
		if err := rows.Scan(&friend.ID, &friend.UserID, &friend.FriendID, &statusStr, &friend.CreatedAt, &friend.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friend.Status = store.FriendStatus(statusStr)
		friends = append(friends, &friend)
	}

	return friends, rows.Err()
}

// IsFriend reports whether two users are friends (accepted, either direction).
func (s *SQLiteStore) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	query := `
		SELECT 1 FROM friends
		WHERE ((user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?))
		AND status = 'accepted'
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, friendID, friendID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return true, nil
}

// DeleteFriendship removes a friendship record.
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, userID, friendID int64) error {
	query := `DELETE FROM friends WHERE user_id = ? AND friend_id = ?`
	_, err := s.db.ExecContext(ctx, query, userID, friendID)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
