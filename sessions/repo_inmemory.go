package sessions

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session // Key(sessionID) -> Session
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Session),
	}
}

// Upsert creates or replaces the session stored under sessionID
func (r *InMemoryRepo) Upsert(_ context.Context, sessionID string, session Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[Key(sessionID)] = session
	return nil
}

// Get retrieves the session stored under sessionID
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, apperrors.ErrNoSession
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[Key(sessionID)]
	if !ok {
		return Session{}, apperrors.ErrNoSession
	}
	return session, nil
}

// Delete removes a session; deleting an unknown session is not an error
func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, Key(sessionID))
	return nil
}

// Len returns the number of stored sessions.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
