package idpfake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-guard/idp"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
)

// Backend is an in-memory idp.Backend with scripted refresh results.
type Backend struct {
	mu           sync.Mutex
	session      *sessions.Session
	refreshErr   error
	refreshDelay time.Duration
	refreshTTL   time.Duration
	refreshCalls int
	signOutCalls int
}

var _ idp.Backend = (*Backend)(nil)

// NewBackend returns a backend holding session (nil for signed out).
func NewBackend(session *sessions.Session) *Backend {
	return &Backend{session: session.Clone(), refreshTTL: time.Hour}
}

func (b *Backend) GetSession(_ context.Context) (*sessions.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.Clone(), nil
}

func (b *Backend) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	b.mu.Lock()
	b.refreshCalls++
	delay := b.refreshDelay
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refreshErr != nil {
		return nil, b.refreshErr
	}
	if b.session == nil {
		return nil, apperrors.ErrRefreshTokenNotFound
	}
	refreshed := b.session.Clone()
	refreshed.AccessToken = refreshed.AccessToken + "+"
	refreshed.ExpiresAt = time.Now().Add(b.refreshTTL)
	b.session = refreshed
	return refreshed.Clone(), nil
}

func (b *Backend) SignOut(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signOutCalls++
	b.session = nil
	return nil
}

// SetSession replaces the stored session.
func (b *Backend) SetSession(session *sessions.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = session.Clone()
}

// FailRefresh makes RefreshSession return err; nil restores success.
func (b *Backend) FailRefresh(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshErr = err
}

// SetRefreshDelay slows RefreshSession down so concurrent callers overlap.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshDelay = d
}

func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func (b *Backend) SignOutCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signOutCalls
}
