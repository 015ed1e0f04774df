package sessions

import "time"

// Session is the credential bundle proving the current user's identity.
// It is created on sign-in, replaced on refresh and removed on sign-out or a
// terminal refresh failure.
type Session struct {
	// Core identity
	UserID string
	Email  string

	// Tokens
	AccessToken  string
	RefreshToken string
	IDToken      string

	// ExpiresAt is the access token expiry
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiresWithin reports whether the access token expires within d of now.
// A session without an expiry never needs a proactive refresh.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(now) <= d
}

// Expired reports whether the access token is already past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresWithin(now, 0)
}

// Clone returns a copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
