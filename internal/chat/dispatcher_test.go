package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopchat/loopchat-server/internal/presence"
	"github.com/loopchat/loopchat-server/internal/proto"
	"github.com/loopchat/loopchat-server/internal/store"
)

type recordingSession struct {
	id      string
	userID  int64
	pushed  []presence.Event
	pushErr error
}

func (s *recordingSession) ID() string    { return s.id }
func (s *recordingSession) UserID() int64 { return s.userID }
func (s *recordingSession) Push(e presence.Event) error {
	if s.pushErr != nil {
		return s.pushErr
	}
	s.pushed = append(s.pushed, e)
	return nil
}

func newTestDispatcher(reg *presence.Registry) *Dispatcher {
	logger := testLogger()
	return NewDispatcher(reg, EveryoneMembership{Presence: reg}, logger)
}

func directMessage(id, from, to int64, text string) *store.Message {
	return &store.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Content:    store.Content{Kind: store.ContentText, Text: text},
		CreatedAt:  time.Now().UTC(),
	}
}

func TestDispatchDirect_SingleLiveSession(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	d := newTestDispatcher(reg)

	bob := &recordingSession{id: "b1", userID: 2}
	reg.Register(bob)

	d.DispatchDirect(directMessage(1, 1, 2, "hi"))

	req.Len(bob.pushed, 1)
	req.Equal(proto.EventNewMessage, bob.pushed[0].Name)
	payload, ok := bob.pushed[0].Data.(proto.MessagePayload)
	req.True(ok)
	req.Equal(int64(1), payload.ID)
	req.Equal("hi", payload.Text)
}

func TestDispatchDirect_OfflineReceiverIsSilent(t *testing.T) {
	reg := presence.NewRegistry()
	d := newTestDispatcher(reg)

	// No sessions registered for user 2: no pushes, no panic.
	d.DispatchDirect(directMessage(1, 1, 2, "hi"))
}

func TestDispatchDirect_MultiSessionFanOut(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	d := newTestDispatcher(reg)

	tabs := []*recordingSession{
		{id: "b1", userID: 2},
		{id: "b2", userID: 2},
		{id: "b3", userID: 2},
	}
	for _, s := range tabs {
		reg.Register(s)
	}
	other := &recordingSession{id: "c1", userID: 3}
	reg.Register(other)

	d.DispatchDirect(directMessage(1, 1, 2, "hi"))

	for _, s := range tabs {
		req.Len(s.pushed, 1, "session %s", s.id)
	}
	req.Empty(other.pushed)
}

func TestDispatchDirect_BrokenSessionIsIsolated(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	d := newTestDispatcher(reg)

	broken := &recordingSession{id: "b1", userID: 2, pushErr: errors.New("transport gone")}
	healthy := &recordingSession{id: "b2", userID: 2}
	reg.Register(broken)
	reg.Register(healthy)

	d.DispatchDirect(directMessage(1, 1, 2, "hi"))

	req.Len(healthy.pushed, 1)
}

func TestDispatchGroup_SkipsSenderSessions(t *testing.T) {
	req := require.New(t)
	reg := presence.NewRegistry()
	d := newTestDispatcher(reg)

	sender := &recordingSession{id: "a1", userID: 1}
	bob := &recordingSession{id: "b1", userID: 2}
	carol := &recordingSession{id: "c1", userID: 3}
	reg.Register(sender)
	reg.Register(bob)
	reg.Register(carol)

	d.DispatchGroup(context.Background(), &store.GroupMessage{
		ID:       5,
		GroupID:  store.GeneralGroupID,
		SenderID: 1,
		Content:  store.Content{Kind: store.ContentText, Text: "hello all"},
	})

	req.Empty(sender.pushed)
	req.Len(bob.pushed, 1)
	req.Len(carol.pushed, 1)
	req.Equal(proto.EventNewGroupMessage, bob.pushed[0].Name)
}
