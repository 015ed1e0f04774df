package returnto

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-session-guard/sessions"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo
type InMemoryRepo struct {
	mu     sync.Mutex
	values map[string]map[string]string // sessions.Key(sessionID) -> key -> value
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		values: make(map[string]map[string]string),
	}
}

func (r *InMemoryRepo) Put(_ context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := sessions.Key(sessionID)
	if r.values[k] == nil {
		r.values[k] = make(map[string]string)
	}
	r.values[k][key] = value
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, sessionID, key string) (string, error) {
	if sessionID == "" {
		return "", nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := sessions.Key(sessionID)
	value := r.values[k][key]
	delete(r.values[k], key)
	if len(r.values[k]) == 0 {
		delete(r.values, k)
	}
	return value, nil
}
