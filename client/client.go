// Package client wires the session layer for one login session: its store,
// identity backend, guard, identity resolver and event stream.
package client

import (
	"context"

	"github.com/jrsteele09/go-session-guard/events"
	"github.com/jrsteele09/go-session-guard/guard"
	"github.com/jrsteele09/go-session-guard/identity"
	"github.com/jrsteele09/go-session-guard/idp"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/jrsteele09/go-session-guard/returnto"
	"github.com/jrsteele09/go-session-guard/securecall"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/redis/go-redis/v9"
)

// Dependencies are shared by every Client.
type Dependencies struct {
	Provider *idp.Provider
	Sessions sessions.Repo
	ReturnTo returnto.Repo
	Lookup   identity.Lookup
	Config   config.SessionConfig
	// Redis, when set, holds the identity cache so it is shared between
	// server instances.
	Redis redis.UniversalClient
	// SignInPath is where users are sent after a forced sign-out.
	SignInPath string
}

// Client is the session layer of one login session.
type Client struct {
	sessionID string
	store     *sessions.ScopedStore
	backend   idp.Backend
	guard     *guard.Guard
	resolver  *identity.Resolver
	events    *events.Broadcaster
	callOpts  []securecall.Option
	returnTo  *returnto.Store
}

// New builds the client for sessionID. backend overrides the OIDC backend
// built from deps.Provider when non-nil.
func New(sessionID string, deps Dependencies, backend idp.Backend) *Client {
	c := &Client{
		sessionID: sessionID,
		store:     sessions.NewScopedStore(deps.Sessions, sessionID),
		events:    events.NewBroadcaster(),
		returnTo:  returnto.NewStore(deps.ReturnTo, sessionID),
	}
	if backend == nil {
		backend = idp.NewStoreBackend(deps.Provider, c.store)
	}
	c.backend = backend

	cfg := deps.Config
	c.callOpts = []securecall.Option{
		securecall.WithMaxRetries(cfg.GetSecureCallMaxRetries()),
		securecall.WithRetryDelay(cfg.GetSecureCallRetryDelay()),
	}

	guardOpts := []guard.Option{
		guard.WithLookahead(cfg.GetRefreshLookahead()),
		guard.WithEventSink(c.events),
		guard.WithReturnToStore(c.returnTo),
		guard.WithSignOutHook(func(ctx context.Context) {
			c.resolver.ClearIdentityCache(ctx)
		}),
	}
	if deps.SignInPath != "" {
		guardOpts = append(guardOpts, guard.WithSignInPath(deps.SignInPath))
	}
	c.guard = guard.New(backend, guardOpts...)

	cache := identity.CacheStore(identity.NewMemoryCache())
	if deps.Redis != nil {
		cache = identity.NewRedisCache(deps.Redis, sessions.Key(sessionID), cfg.GetIdentityTTL())
	}
	c.resolver = identity.NewResolver(c.guard, deps.Lookup,
		identity.WithTTL(cfg.GetIdentityTTL()),
		identity.WithGrace(cfg.GetIdentityGrace()),
		identity.WithCacheStore(cache),
		identity.WithCallOptions(c.callOpts...),
	)
	return c
}

func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) Guard() *guard.Guard {
	return c.guard
}

func (c *Client) Events() *events.Broadcaster {
	return c.events
}

func (c *Client) ReturnTo() *returnto.Store {
	return c.returnTo
}

// Session returns the stored session without refreshing it.
func (c *Client) Session(ctx context.Context) (*sessions.Session, error) {
	return c.backend.GetSession(ctx)
}

// StartSession stores a freshly signed-in session.
func (c *Client) StartSession(ctx context.Context, session *sessions.Session) error {
	c.resolver.ClearIdentityCache(ctx)
	return c.store.Set(ctx, session)
}

// SignOut ends the session at the user's request.
func (c *Client) SignOut(ctx context.Context) error {
	c.resolver.ClearIdentityCache(ctx)
	return c.backend.SignOut(ctx)
}

func (c *Client) ResolveIdentity(ctx context.Context) (*string, error) {
	return c.resolver.ResolveIdentity(ctx)
}

func (c *Client) ClearIdentityCache(ctx context.Context) {
	c.resolver.ClearIdentityCache(ctx)
}

// Call runs op through the secure call wrapper with the client's configured
// retry budget and delay.
func Call[T any](ctx context.Context, c *Client, op func(ctx context.Context) (T, error), options ...securecall.Option) (T, error) {
	opts := append(append([]securecall.Option{}, c.callOpts...), options...)
	return securecall.Call(ctx, c.guard, op, opts...)
}
