package authflowrepo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]AuthFlowState
	ttl     time.Duration
	nowFunc func() time.Time
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory auth flow state repository. States
// older than ttl are treated as missing; ttl <= 0 uses DefaultTTL.
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		states:  make(map[string]AuthFlowState),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Put stores an auth flow state, dropping expired ones on the way.
func (r *InMemoryRepo) Put(_ context.Context, state string, authState AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	for k, v := range r.states {
		if now.Sub(v.CreatedAt) > r.ttl {
			delete(r.states, k)
		}
	}
	if authState.CreatedAt.IsZero() {
		authState.CreatedAt = now
	}
	r.states[state] = authState
	return nil
}

// Take returns and removes the state.
func (r *InMemoryRepo) Take(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ErrStateNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[state]
	if !exists {
		return nil, ErrStateNotFound
	}
	delete(r.states, state)
	if r.nowFunc().Sub(authState.CreatedAt) > r.ttl {
		return nil, ErrStateNotFound
	}
	return &authState, nil
}
