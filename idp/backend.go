package idp

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
)

// Backend is the identity backend as seen by one session holder.
type Backend interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*sessions.Session, error)
	// RefreshSession exchanges the refresh token for a new session and stores it.
	RefreshSession(ctx context.Context) (*sessions.Session, error)
	// SignOut revokes and forgets the current session.
	SignOut(ctx context.Context) error
}

// StoreBackend implements Backend for the session kept in a sessions.Store.
type StoreBackend struct {
	provider *Provider
	store    sessions.Store
}

var _ Backend = (*StoreBackend)(nil)

// NewStoreBackend binds provider to store.
func NewStoreBackend(provider *Provider, store sessions.Store) *StoreBackend {
	return &StoreBackend{provider: provider, store: store}
}

func (b *StoreBackend) GetSession(ctx context.Context) (*sessions.Session, error) {
	return b.store.Get(ctx)
}

func (b *StoreBackend) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	current, err := b.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("[StoreBackend RefreshSession] %w", err)
	}
	if current == nil || current.RefreshToken == "" {
		return nil, apperrors.ErrRefreshTokenNotFound
	}

	refreshed, err := b.provider.Refresh(ctx, current)
	if err != nil {
		return nil, err
	}
	if err := b.store.Set(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("[StoreBackend RefreshSession] %w", err)
	}
	return refreshed, nil
}

func (b *StoreBackend) SignOut(ctx context.Context) error {
	current, err := b.store.Get(ctx)
	if err == nil && current != nil {
		b.provider.Revoke(ctx, current)
	}
	if err := b.store.Clear(ctx); err != nil {
		return fmt.Errorf("[StoreBackend SignOut] %w", err)
	}
	return nil
}
