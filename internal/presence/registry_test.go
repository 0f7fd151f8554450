package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id     string
	userID int64
	events []Event
}

func (s *fakeSession) ID() string     { return s.id }
func (s *fakeSession) UserID() int64  { return s.userID }
func (s *fakeSession) Push(e Event) error {
	s.events = append(s.events, e)
	return nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	s1 := &fakeSession{id: "s1", userID: 1}
	s2 := &fakeSession{id: "s2", userID: 1}
	s3 := &fakeSession{id: "s3", userID: 2}

	r.Register(s1)
	r.Register(s2)
	r.Register(s3)

	req.Len(r.SessionsFor(1), 2)
	req.Len(r.SessionsFor(2), 1)
	req.Empty(r.SessionsFor(3))
	req.ElementsMatch([]int64{1, 2}, r.Users())
	req.Len(r.AllSessions(), 3)
}

func TestRegistry_RegisterIsIdempotentPerHandle(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	s := &fakeSession{id: "s1", userID: 1}
	r.Register(s)
	r.Register(s)

	req.Len(r.SessionsFor(1), 1)
}

func TestRegistry_DeregisterCleansUp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	s1 := &fakeSession{id: "s1", userID: 1}
	s2 := &fakeSession{id: "s2", userID: 1}
	r.Register(s1)
	r.Register(s2)

	r.Deregister(s1)
	req.Len(r.SessionsFor(1), 1)
	req.Equal("s2", r.SessionsFor(1)[0].ID())

	r.Deregister(s2)
	req.Empty(r.SessionsFor(1))
	req.Empty(r.Users())

	// Repeated deregister of a gone handle is a no-op.
	r.Deregister(s2)
	r.Deregister(&fakeSession{id: "never", userID: 99})
	req.Empty(r.Users())
}

func TestRegistry_ConcurrentLifecycles(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := &fakeSession{id: string(rune('a' + n%26)), userID: int64(n % 4)}
			for range 100 {
				r.Register(s)
				r.SessionsFor(s.UserID())
				r.Users()
				r.Deregister(s)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, r.Users())
}
