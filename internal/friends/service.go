package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/loopchat/loopchat-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Service provides friend management business logic. It doubles as the
// authorization collaborator for direct messaging: two users may
// exchange messages once a request between them is accepted.
type Service struct {
	store store.Store
}

// New creates a new friends service.
func New(st store.Store) *Service {
	return &Service{
		store: st,
	}
}

// SendRequest sends a friend request from one user to another.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID int64) (*store.Friend, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.store.GetUserByID(ctx, toUserID); err != nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.store.GetFriendship(ctx, fromUserID, toUserID)
	if err == nil {
		switch existing.Status {
		case store.FriendStatusAccepted:
			return nil, ErrAlreadyFriends
		case store.FriendStatusPending:
			return nil, ErrRequestAlreadyExists
		}
	}

	friend, err := s.store.CreateFriendRequest(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	return friend, nil
}

// AcceptRequest accepts a pending friend request directed to userID.
func (s *Service) AcceptRequest(ctx context.Context, userID, fromUserID int64) error {
	existing, err := s.store.GetFriendship(ctx, fromUserID, userID)
	if err != nil {
		return ErrRequestNotFound
	}

	// Must be pending and directed to the accepting user.
	if existing.Status != store.FriendStatusPending {
		return ErrRequestNotFound
	}
	if existing.FriendID != userID {
		return ErrRequestNotFound
	}

	if err := s.store.UpdateFriendStatus(ctx, existing.UserID, existing.FriendID, store.FriendStatusAccepted); err != nil {
		return fmt.Errorf("accept request: %w", err)
	}

	return nil
}

// RejectRequest rejects a pending friend request directed to userID.
func (s *Service) RejectRequest(ctx context.Context, userID, fromUserID int64) error {
	existing, err := s.store.GetFriendship(ctx, fromUserID, userID)
	if err != nil {
		return ErrRequestNotFound
	}

	if existing.Status != store.FriendStatusPending {
		return ErrRequestNotFound
	}
	if existing.FriendID != userID {
		return ErrRequestNotFound
	}

	if err := s.store.DeleteFriendship(ctx, existing.UserID, existing.FriendID); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}

	return nil
}

// ListFriends lists accepted friendships for a user.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.Friend, error) {
	status := store.FriendStatusAccepted
	friends, err := s.store.ListFriends(ctx, userID, &status)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// ListPendingRequests lists pending requests involving a user.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]*store.Friend, error) {
	status := store.FriendStatusPending
	requests, err := s.store.ListFriends(ctx, userID, &status)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// Allowed reports whether two users may exchange direct messages.
// Implements the conversation service's authorizer.
func (s *Service) Allowed(ctx context.Context, senderID, receiverID int64) (bool, error) {
	if senderID == receiverID {
		// Self-messaging is harmless.
		return true, nil
	}
	ok, err := s.store.IsFriend(ctx, senderID, receiverID)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return ok, nil
}
