package presence

import "sync"

// Event is a payload pushed to a live session. Name is the wire event
// name, Data is serialized by the transport.
type Event struct {
	Name string
	Data any
}

// Session is one live client connection owned by the registry. A user
// may hold many sessions at once (multiple tabs or devices).
//
// Push hands the event to the session's transport. It must not block:
// implementations report a full or closed transport as an error instead
// of waiting, so one slow client cannot stall delivery to others.
type Session interface {
	ID() string
	UserID() int64
	Push(event Event) error
}

// Registry is the process-wide mapping from user id to live sessions.
// It holds no message state and never performs I/O; all methods are
// safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]map[string]Session),
	}
}

// Register adds a session to its user's set. Registering a handle id
// that is already present is a no-op, so a duplicate can never cause
// duplicate delivery.
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[s.UserID()]
	if !ok {
		set = make(map[string]Session)
		r.sessions[s.UserID()] = set
	}
	if _, exists := set[s.ID()]; exists {
		return
	}
	set[s.ID()] = s
}

// Deregister removes a session from its user's set. Removing an absent
// handle is a no-op; disconnect races must never crash the registry.
func (r *Registry) Deregister(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[s.UserID()]
	if !ok {
		return
	}
	delete(set, s.ID())
	if len(set) == 0 {
		delete(r.sessions, s.UserID())
	}
}

// SessionsFor returns the live sessions of a user, possibly empty.
// Pure in-memory read.
func (r *Registry) SessionsFor(userID int64) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// AllSessions returns every live session across all users.
func (r *Registry) AllSessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Session
	for _, set := range r.sessions {
		for _, s := range set {
			out = append(out, s)
		}
	}
	return out
}

// Users returns the ids of users with at least one live session.
func (r *Registry) Users() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.sessions))
	for userID := range r.sessions {
		out = append(out, userID)
	}
	return out
}
