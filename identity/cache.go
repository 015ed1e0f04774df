package identity

import (
	"context"
	"sync"
	"time"
)

// CachedIdentity is a resolved account id and whose it is.
type CachedIdentity struct {
	Value       *string   `json:"value"`
	OwnerUserID string    `json:"owner_user_id"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ValidFor reports whether the cached value may be served to userID at now.
func (c *CachedIdentity) ValidFor(userID string, now time.Time, ttl time.Duration) bool {
	if c == nil || userID == "" || c.OwnerUserID != userID {
		return false
	}
	return now.Sub(c.FetchedAt) < ttl
}

// CacheStore holds at most one CachedIdentity. Get returns nil, nil when empty.
type CacheStore interface {
	Get(ctx context.Context) (*CachedIdentity, error)
	Set(ctx context.Context, identity CachedIdentity) error
	Clear(ctx context.Context) error
}

// MemoryCache is a process-local CacheStore.
type MemoryCache struct {
	mu      sync.RWMutex
	current *CachedIdentity
}

var _ CacheStore = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Get(_ context.Context) (*CachedIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, nil
	}
	c := *m.current
	return &c, nil
}

func (m *MemoryCache) Set(_ context.Context, identity CachedIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &identity
	return nil
}

func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}
