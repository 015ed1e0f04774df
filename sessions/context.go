package sessions

import "context"

type contextKey struct{}

// NewContext attaches the session a remote operation runs under.
func NewContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, session)
}

// FromContext returns the session attached by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(contextKey{}).(*Session)
	return session
}
