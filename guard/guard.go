// Package guard keeps a session usable: it refreshes tokens ahead of expiry,
// recovers from session errors reported by remote calls, and signs the user
// out when recovery is impossible.
package guard

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-guard/events"
	"github.com/jrsteele09/go-session-guard/idp"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/metrics"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultLookahead  = 5 * time.Minute
	DefaultSignInPath = "/login"

	triggerProactive = "proactive"
	triggerReactive  = "reactive"

	// One refresh at a time per session scope, whatever triggered it.
	refreshKey = "refresh"
)

// EventSink receives session signals for the presenting UI.
type EventSink interface {
	Publish(ev events.Event)
}

// ReturnToStore remembers where the user was when the session was lost.
type ReturnToStore interface {
	SaveReturnTo(ctx context.Context, location string) error
}

// Guard owns the lifecycle of one session scope. It is the only component that
// refreshes or clears the session.
type Guard struct {
	backend     idp.Backend
	lookahead   time.Duration
	signInPath  string
	nowFunc     func() time.Time
	sink        EventSink
	returnTo    ReturnToStore
	logger      zerolog.Logger
	onSignOut   []func(ctx context.Context)
	refreshes   singleflight.Group
	signOutLock sync.Mutex
}

type Option func(*Guard)

// WithLookahead sets how close to expiry a session is refreshed before use.
func WithLookahead(d time.Duration) Option {
	return func(g *Guard) {
		g.lookahead = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

// WithEventSink enables the session-invalid signal. Without a sink the guard
// behaves as in a headless context: sign-out happens, nothing is announced.
func WithEventSink(sink EventSink) Option {
	return func(g *Guard) {
		g.sink = sink
	}
}

func WithReturnToStore(store ReturnToStore) Option {
	return func(g *Guard) {
		g.returnTo = store
	}
}

func WithSignInPath(path string) Option {
	return func(g *Guard) {
		g.signInPath = path
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithSignOutHook registers fn to run after every forced sign-out.
func WithSignOutHook(fn func(ctx context.Context)) Option {
	return func(g *Guard) {
		g.onSignOut = append(g.onSignOut, fn)
	}
}

func New(backend idp.Backend, options ...Option) *Guard {
	g := &Guard{
		backend:    backend,
		lookahead:  DefaultLookahead,
		signInPath: DefaultSignInPath,
		nowFunc:    time.Now,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// SignInRedirect is the target users are sent to after a forced sign-out.
func (g *Guard) SignInRedirect() string {
	return g.signInPath + "?session_expired=true"
}

// CurrentSession returns the stored session without refreshing it, or nil.
func (g *Guard) CurrentSession(ctx context.Context) (*sessions.Session, error) {
	return g.backend.GetSession(ctx)
}

// IsSessionError reports whether err means the refresh token is missing,
// invalid or expired.
func (g *Guard) IsSessionError(err error) bool {
	return apperrors.IsSessionError(err)
}

// HandleSessionError signs the user out when err is a session error and
// reports whether err was one. The current location (see WithLocation) is saved
// for restoration after sign-in unless it already is the sign-in page. When the
// session is already gone nothing is signed out or announced again.
func (g *Guard) HandleSessionError(ctx context.Context, err error) bool {
	if !g.IsSessionError(err) {
		return false
	}

	g.signOutLock.Lock()
	defer g.signOutLock.Unlock()

	if current, getErr := g.backend.GetSession(ctx); getErr == nil && current == nil {
		g.logger.Debug().Str("reason", err.Error()).Msg("Session already signed out")
		return true
	}

	if location := LocationFrom(ctx); location != "" && !g.isSignInLocation(location) && g.returnTo != nil {
		if saveErr := g.returnTo.SaveReturnTo(ctx, location); saveErr != nil {
			g.logger.Err(saveErr).Str("location", location).Msg("Failed to save return location")
		}
	}

	if signOutErr := g.backend.SignOut(ctx); signOutErr != nil {
		g.logger.Err(signOutErr).Msg("Sign-out after session error failed")
	}
	metrics.RecordSessionErrorHandled()
	g.logger.Info().Str("reason", err.Error()).Msg("Session invalidated")

	for _, fn := range g.onSignOut {
		fn(ctx)
	}

	if g.sink != nil {
		g.sink.Publish(events.Event{
			Type:     events.SessionInvalid,
			Redirect: g.SignInRedirect(),
			Reason:   apperrors.SessionExpired.String(),
			At:       g.nowFunc(),
		})
	}
	return true
}

// EnsureFreshSession returns the current session, refreshing it first when it
// expires within the lookahead window. It returns nil when there is no session
// or the refresh failed; a failed refresh has already been escalated through
// HandleSessionError and its cause is returned as the error.
func (g *Guard) EnsureFreshSession(ctx context.Context) (*sessions.Session, error) {
	current, err := g.backend.GetSession(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Guard EnsureFreshSession] reading session")
	}
	if current == nil {
		return nil, nil
	}
	if !current.ExpiresWithin(g.nowFunc(), g.lookahead) {
		return current, nil
	}
	return g.refresh(ctx, triggerProactive, nil)
}

// Recover attempts one refresh after an operation failed with a session
// error. It reports whether the session is usable again; when not, the user
// has been signed out if the refresh itself failed with a session error.
// When ctx carries the session the failed operation used (sessions.NewContext)
// and the stored session has moved on since, no refresh is made.
func (g *Guard) Recover(ctx context.Context, err error) bool {
	if !g.IsSessionError(err) {
		return false
	}
	session, refreshErr := g.refresh(ctx, triggerReactive, sessions.FromContext(ctx))
	return refreshErr == nil && session != nil
}

// refresh runs at most one refresh at a time for the session scope; concurrent
// callers share its outcome, including a single sign-out on failure. The
// refresh itself is detached from the caller's cancellation. used is the
// session a failed operation ran with, or nil.
func (g *Guard) refresh(ctx context.Context, trigger string, used *sessions.Session) (*sessions.Session, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.refreshes.DoChan(refreshKey, func() (any, error) {
		current, err := g.backend.GetSession(detached)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
		switch trigger {
		case triggerProactive:
			if !current.ExpiresWithin(g.nowFunc(), g.lookahead) {
				return current, nil
			}
		case triggerReactive:
			if used != nil && used.AccessToken != current.AccessToken {
				return current, nil
			}
		}

		refreshed, err := g.backend.RefreshSession(detached)
		metrics.RecordRefresh(trigger, err == nil)
		if err != nil {
			g.logger.Warn().Err(err).Str("trigger", trigger).Msg("Session refresh failed")
			g.HandleSessionError(detached, err)
			return nil, err
		}

		g.logger.Debug().Str("trigger", trigger).Time("expires_at", refreshed.ExpiresAt).Msg("Session refreshed")
		if g.sink != nil {
			g.sink.Publish(events.Event{Type: events.SessionRefreshed, At: g.nowFunc()})
		}
		return refreshed, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		session, _ := res.Val.(*sessions.Session)
		return session.Clone(), nil
	}
}

func (g *Guard) isSignInLocation(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return strings.HasPrefix(location, g.signInPath)
	}
	return u.Path == g.signInPath
}
