package securecall

import (
	"context"

	"github.com/jrsteele09/go-session-guard/sessions"
)

// WithSession attaches the session an operation runs under.
func WithSession(ctx context.Context, session *sessions.Session) context.Context {
	return sessions.NewContext(ctx, session)
}

// SessionFrom returns the session Call validated for this attempt, or nil
// outside of Call.
func SessionFrom(ctx context.Context) *sessions.Session {
	return sessions.FromContext(ctx)
}
