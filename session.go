package blockhub

import (
	"context"
	"sync"
)

// Session is a live connection. An empty Username means the client has not
// logged in.
type Session struct {
	ID        string
	Username  string
	ProjectID ProjectID
}

func (s *Session) IsAnonymous() bool {
	return s.Username == ""
}

type SessionRegistry interface {
	Session(clientID string) (*Session, bool)
	SetUsername(clientID, username string) error
	Logout(clientID string) error
	NotifyProjectOwnerChanged(ctx context.Context, id ProjectID) error
}

// ProjectEvents fans project updates out to the project's subscribers.
type ProjectEvents interface {
	ProjectUpdated(ctx context.Context, id ProjectID) error
}

type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	events   ProjectEvents
}

// NewSessions returns an in-process registry. events may be nil when
// no subscriber needs to hear about ownership changes.
func NewSessions(events ProjectEvents) *Sessions {
	return &Sessions{sessions: map[string]*Session{}, events: events}
}

// Connect registers a new anonymous session.
func (r *Sessions) Connect() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{ID: string(nextID())}
	r.sessions[s.ID] = s

	c := *s
	return &c
}

func (r *Sessions) Disconnect(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, clientID)
}

func (r *Sessions) SetProject(clientID string, id ProjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return ErrSessionNotFound
	}
	s.ProjectID = id
	return nil
}

func (r *Sessions) Session(clientID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return nil, false
	}
	c := *s
	return &c, true
}

func (r *Sessions) SetUsername(clientID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return ErrSessionNotFound
	}
	s.Username = username
	return nil
}

func (r *Sessions) Logout(clientID string) error {
	return r.SetUsername(clientID, "")
}

func (r *Sessions) NotifyProjectOwnerChanged(ctx context.Context, id ProjectID) error {
	if r.events == nil {
		return nil
	}
	return r.events.ProjectUpdated(ctx, id)
}
