// Package returnto remembers where a user was when their session ended so the
// sign-in page can send them back there. Each entry is read once.
package returnto

import (
	"context"
	"net/url"
	"strings"
)

// PostLoginRedirectKey is the fixed key the redirect target is stored under.
const PostLoginRedirectKey = "post_login_redirect"

// Repo stores values per login session id. Take returns "" when nothing is
// stored and removes what it returns.
type Repo interface {
	Put(ctx context.Context, sessionID, key, value string) error
	Take(ctx context.Context, sessionID, key string) (string, error)
}

// Store binds a Repo to one login session.
type Store struct {
	repo      Repo
	sessionID string
}

func NewStore(repo Repo, sessionID string) *Store {
	return &Store{repo: repo, sessionID: sessionID}
}

// SaveReturnTo stores location as the post-login redirect target.
func (s *Store) SaveReturnTo(ctx context.Context, location string) error {
	if !IsLocalPath(location) {
		return nil
	}
	return s.repo.Put(ctx, s.sessionID, PostLoginRedirectKey, location)
}

// TakeReturnTo reads and clears the post-login redirect target.
func (s *Store) TakeReturnTo(ctx context.Context) (string, error) {
	return s.repo.Take(ctx, s.sessionID, PostLoginRedirectKey)
}

// IsLocalPath reports whether location is a path on this site, so it can be
// redirected to without creating an open redirect.
func IsLocalPath(location string) bool {
	if !strings.HasPrefix(location, "/") || strings.HasPrefix(location, "//") || strings.HasPrefix(location, "/\\") {
		return false
	}
	u, err := url.Parse(location)
	return err == nil && u.Host == "" && u.Scheme == ""
}
