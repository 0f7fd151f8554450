package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/store"
)

// Authorizer decides whether two users may exchange direct messages.
// Friendship checks live behind this boundary; the conversation core
// only consumes the verdict.
type Authorizer interface {
	Allowed(ctx context.Context, senderID, receiverID int64) (bool, error)
}

// AllowAll authorizes every pair.
type AllowAll struct{}

func (AllowAll) Allowed(context.Context, int64, int64) (bool, error) {
	return true, nil
}

// Service is the conversation API: the only entry point that mutates
// message state. It persists first and dispatches after; a storage
// failure short-circuits dispatch, and a dispatch failure is invisible
// to the sender.
type Service struct {
	store      store.Store
	dispatcher *Dispatcher
	authz      Authorizer
	log        *zerolog.Logger
}

// NewService wires the conversation service.
func NewService(st store.Store, d *Dispatcher, authz Authorizer, logger *zerolog.Logger) *Service {
	if authz == nil {
		authz = AllowAll{}
	}
	return &Service{
		store:      st,
		dispatcher: d,
		authz:      authz,
		log:        logger,
	}
}

// Send validates, persists, and dispatches a direct message, returning
// the stored record. The returned message reflects the true persistence
// outcome regardless of delivery.
func (s *Service) Send(ctx context.Context, senderID, receiverID int64, content store.Content) (*store.Message, error) {
	if err := content.Validate(); err != nil {
		return nil, domainError(ErrCodeInvalidPayload, "message has neither text nor attachment", err)
	}

	allowed, err := s.authz.Allowed(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("authorize pair: %w", err)
	}
	if !allowed {
		return nil, domainError(ErrCodeNotAllowed, "users are not allowed to exchange messages", ErrNotAllowed)
	}

	msg := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrEmptyContent) {
			return nil, domainError(ErrCodeInvalidPayload, "message has neither text nor attachment", err)
		}
		return nil, domainError(ErrCodeStorageFailed, "failed to persist message", err)
	}

	// Dispatch strictly after persistence. Delivery outcome is not
	// part of the send contract.
	s.dispatcher.DispatchDirect(msg)

	return msg, nil
}

// History returns the full conversation between two users ascending by
// creation order.
func (s *Service) History(ctx context.Context, userA, userB int64) ([]*store.Message, error) {
	messages, err := s.store.ListConversation(ctx, userA, userB)
	if err != nil {
		return nil, domainError(ErrCodeStorageFailed, "failed to read history", err)
	}
	return messages, nil
}

// SendGroup validates, persists, and dispatches a message to the
// predefined group.
func (s *Service) SendGroup(ctx context.Context, senderID int64, content store.Content) (*store.GroupMessage, error) {
	if err := content.Validate(); err != nil {
		return nil, domainError(ErrCodeInvalidPayload, "message has neither text nor attachment", err)
	}

	msg := &store.GroupMessage{
		GroupID:  store.GeneralGroupID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.store.SaveGroupMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrEmptyContent) {
			return nil, domainError(ErrCodeInvalidPayload, "message has neither text nor attachment", err)
		}
		return nil, domainError(ErrCodeStorageFailed, "failed to persist group message", err)
	}

	s.dispatcher.DispatchGroup(ctx, msg)

	return msg, nil
}

// GroupHistory returns all messages of the predefined group ascending
// by creation order.
func (s *Service) GroupHistory(ctx context.Context) ([]*store.GroupMessage, error) {
	messages, err := s.store.ListGroupMessages(ctx, store.GeneralGroupID)
	if err != nil {
		return nil, domainError(ErrCodeStorageFailed, "failed to read group history", err)
	}
	return messages, nil
}

// MarkGroupRead records that a user has read a group message.
func (s *Service) MarkGroupRead(ctx context.Context, messageID, userID int64) error {
	if err := s.store.MarkGroupMessageRead(ctx, messageID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainError(ErrCodeNotFound, "group message not found", err)
		}
		return domainError(ErrCodeStorageFailed, "failed to mark group message read", err)
	}
	return nil
}

// ListContacts returns every other registered user, for the chat
// sidebar.
func (s *Service) ListContacts(ctx context.Context, userID int64) ([]*store.User, error) {
	users, err := s.store.ListUsers(ctx, userID)
	if err != nil {
		return nil, domainError(ErrCodeStorageFailed, "failed to list users", err)
	}
	return users, nil
}
