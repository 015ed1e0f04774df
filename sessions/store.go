package sessions

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
)

// ScopedStore exposes a single login session of a Repo as a Store.
type ScopedStore struct {
	repo      Repo
	sessionID string
}

var _ Store = (*ScopedStore)(nil)

// NewScopedStore binds sessionID of repo.
func NewScopedStore(repo Repo, sessionID string) *ScopedStore {
	return &ScopedStore{repo: repo, sessionID: sessionID}
}

// SessionID returns the login session id the store is bound to.
func (s *ScopedStore) SessionID() string {
	return s.sessionID
}

func (s *ScopedStore) Get(ctx context.Context) (*Session, error) {
	session, err := s.repo.Get(ctx, s.sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("[ScopedStore Get] %w", err)
	}
	return &session, nil
}

func (s *ScopedStore) Set(ctx context.Context, session *Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	if err := s.repo.Upsert(ctx, s.sessionID, *session); err != nil {
		return fmt.Errorf("[ScopedStore Set] %w", err)
	}
	return nil
}

func (s *ScopedStore) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.sessionID); err != nil {
		return fmt.Errorf("[ScopedStore Clear] %w", err)
	}
	return nil
}
