package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/presence"
	"github.com/loopchat/loopchat-server/internal/proto"
	"github.com/loopchat/loopchat-server/internal/store"
)

// PresenceLookup is the read side of the presence registry the
// dispatcher fans out against.
type PresenceLookup interface {
	SessionsFor(userID int64) []presence.Session
	Users() []int64
}

// Membership answers who belongs to a group. Kept as an explicit
// lookup even though the current deployment has a single room where
// everyone is a member.
type Membership interface {
	Members(ctx context.Context, groupID string) ([]int64, error)
}

// EveryoneMembership treats every currently online user as a group
// member.
type EveryoneMembership struct {
	Presence PresenceLookup
}

func (m EveryoneMembership) Members(_ context.Context, _ string) ([]int64, error) {
	return m.Presence.Users(), nil
}

// Dispatcher pushes already-persisted messages to live sessions. It
// owns no persistence and never retries: a failed push is logged and
// the message stays available through history.
type Dispatcher struct {
	presence   PresenceLookup
	membership Membership
	log        *zerolog.Logger
}

// NewDispatcher builds a dispatcher over a presence lookup and a group
// membership source.
func NewDispatcher(p PresenceLookup, m Membership, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		presence:   p,
		membership: m,
		log:        logger,
	}
}

// DispatchDirect pushes a stored direct message to every live session
// of the receiver. Push failures are isolated per session.
func (d *Dispatcher) DispatchDirect(msg *store.Message) {
	event := presence.Event{
		Name: proto.EventNewMessage,
		Data: proto.FromMessage(msg),
	}
	for _, session := range d.presence.SessionsFor(msg.ReceiverID) {
		d.push(session, event, msg.ID)
	}
}

// DispatchGroup pushes a stored group message to every live session of
// every group member except the sender's own sessions.
func (d *Dispatcher) DispatchGroup(ctx context.Context, msg *store.GroupMessage) {
	members, err := d.membership.Members(ctx, msg.GroupID)
	if err != nil {
		d.log.Warn().Err(err).Str("group_id", msg.GroupID).Msg("resolve group members")
		return
	}

	event := presence.Event{
		Name: proto.EventNewGroupMessage,
		Data: proto.FromGroupMessage(msg),
	}
	for _, userID := range members {
		if userID == msg.SenderID {
			continue
		}
		for _, session := range d.presence.SessionsFor(userID) {
			d.push(session, event, msg.ID)
		}
	}
}

func (d *Dispatcher) push(session presence.Session, event presence.Event, messageID int64) {
	if err := session.Push(event); err != nil {
		// Best effort: the recipient recovers the message from
		// history on its next fetch.
		d.log.Warn().
			Err(err).
			Str("session_id", session.ID()).
			Int64("user_id", session.UserID()).
			Int64("message_id", messageID).
			Msg("push failed")
	}
}
