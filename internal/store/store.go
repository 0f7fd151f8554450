package store

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyContent is returned when a message carries neither text nor an attachment.
var ErrEmptyContent = errors.New("message content is empty")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// GeneralGroupID is the single predefined group chat room.
const GeneralGroupID = "general"

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ContentKind tags the variant of a message body.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
	ContentFile  ContentKind = "file"
)

// Content is the tagged message body: plain text, an image reference,
// or a file reference. Exactly one variant must be populated.
type Content struct {
	Kind     ContentKind
	Text     string // ContentText
	URL      string // ContentImage, ContentFile: retrievable attachment URL
	Filename string // ContentFile: original file name
}

// Validate checks that the content holds exactly the fields its kind requires.
func (c Content) Validate() error {
	switch c.Kind {
	case ContentText:
		if c.Text == "" {
			return ErrEmptyContent
		}
	case ContentImage, ContentFile:
		if c.URL == "" {
			return ErrEmptyContent
		}
	default:
		return ErrEmptyContent
	}
	return nil
}

// Message is a persisted direct message between two users.
// Messages are immutable once stored.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    Content
	CreatedAt  time.Time
}

// GroupMessage is a persisted message in a group room, together with
// the set of users that have marked it read.
type GroupMessage struct {
	ID        int64
	GroupID   string
	SenderID  int64
	Content   Content
	ReadBy    []int64
	CreatedAt time.Time
}

// FriendStatus defines friend relationship status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
)

// Friend represents a friend relationship. UserID is the requester.
type Friend struct {
	ID        int64
	UserID    int64
	FriendID  int64
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers lists all users except the given one, oldest first.
	ListUsers(ctx context.Context, excludeUserID int64) ([]*User, error)
}

// MessageStore handles durable, append-only message persistence.
type MessageStore interface {
	// SaveMessage appends a direct message and fills in its ID.
	// Returns ErrEmptyContent when the content is invalid.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListConversation returns all messages exchanged between two users,
	// in either direction, ascending by creation order.
	ListConversation(ctx context.Context, userA, userB int64) ([]*Message, error)

	// SaveGroupMessage appends a group message and fills in its ID.
	SaveGroupMessage(ctx context.Context, msg *GroupMessage) error

	// ListGroupMessages returns all messages of a group ascending by
	// creation order, each with its read set.
	ListGroupMessages(ctx context.Context, groupID string) ([]*GroupMessage, error)

	// MarkGroupMessageRead records that a user has read a group message.
	// Marking twice is a no-op.
	MarkGroupMessageRead(ctx context.Context, messageID, userID int64) error
}

// FriendStore handles friend relationship persistence.
type FriendStore interface {
	// CreateFriendRequest creates a new friend request (pending status).
	CreateFriendRequest(ctx context.Context, userID, friendID int64) (*Friend, error)

	// UpdateFriendStatus updates the status of a friendship.
	UpdateFriendStatus(ctx context.Context, userID, friendID int64, status FriendStatus) error

	// GetFriendship retrieves a friendship between two users (either direction).
	GetFriendship(ctx context.Context, userID, friendID int64) (*Friend, error)

	// ListFriends lists friendships for a user, optionally filtered by status.
	ListFriends(ctx context.Context, userID int64, status *FriendStatus) ([]*Friend, error)

	// IsFriend reports whether two users are friends (accepted, either direction).
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)

	// DeleteFriendship removes a friendship record.
	DeleteFriendship(ctx context.Context, userID, friendID int64) error
}

// Store is the full persistence interface.
type Store interface {
	UserStore
	MessageStore
	FriendStore

	// Close releases the underlying database resources.
	Close() error
}
