// Package identity resolves the restaurant account the signed-in user works
// in. Results are cached for a short TTL and concurrent resolutions for the
// same user are collapsed into one backend lookup.
package identity

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/metrics"
	"github.com/jrsteele09/go-session-guard/securecall"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL   = 5 * time.Minute
	DefaultGrace = 100 * time.Millisecond
)

// Lookup queries the data backend. Both strategies return nil, nil when the
// user has no matching record.
type Lookup interface {
	// LookupMembership finds the account through the user's membership record.
	LookupMembership(ctx context.Context, userID string) (*string, error)
	// LookupOwned returns the most recently created account owned by the user.
	LookupOwned(ctx context.Context, userID string) (*string, error)
}

// SessionGuard is what the resolver needs from the session guard.
type SessionGuard interface {
	securecall.Caller
	CurrentSession(ctx context.Context) (*sessions.Session, error)
}

// Resolver answers ResolveIdentity for one session scope.
type Resolver struct {
	guard    SessionGuard
	lookup   Lookup
	cache    CacheStore
	ttl      time.Duration
	grace    time.Duration
	nowFunc  func() time.Time
	logger   zerolog.Logger
	callOpts []securecall.Option

	flights singleflight.Group

	// cacheMu orders cache writes against ClearIdentityCache.
	cacheMu sync.Mutex

	mu      sync.Mutex
	epoch   uint64
	settled *settledResolution
}

// settledResolution lets callers arriving just after a resolution finished
// share its outcome instead of starting another.
type settledResolution struct {
	key       string
	value     *string
	err       error
	settledAt time.Time
}

type Option func(*Resolver)

func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.ttl = ttl
	}
}

// WithGrace sets how long a finished resolution keeps absorbing new callers.
func WithGrace(grace time.Duration) Option {
	return func(r *Resolver) {
		r.grace = grace
	}
}

func WithCacheStore(cache CacheStore) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *Resolver) {
		r.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithCallOptions configures the secure calls made for each lookup strategy.
func WithCallOptions(options ...securecall.Option) Option {
	return func(r *Resolver) {
		r.callOpts = append(r.callOpts, options...)
	}
}

func NewResolver(guard SessionGuard, lookup Lookup, options ...Option) *Resolver {
	r := &Resolver{
		guard:   guard,
		lookup:  lookup,
		cache:   NewMemoryCache(),
		ttl:     DefaultTTL,
		grace:   DefaultGrace,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// ResolveIdentity returns the account id of the signed-in user, or nil when
// there is no session or no account could be found. Failed lookups are not
// cached. The resolution keeps running when ctx is cancelled so its result
// still reaches the cache.
func (r *Resolver) ResolveIdentity(ctx context.Context) (*string, error) {
	session, err := r.guard.CurrentSession(ctx)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Resolver ResolveIdentity] reading session")
	}
	if session == nil || session.UserID == "" {
		return nil, nil
	}
	userID := session.UserID

	cached, err := r.cache.Get(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Identity cache read failed")
	} else if cached.ValidFor(userID, r.nowFunc(), r.ttl) {
		metrics.RecordIdentityLookup("hit")
		return cloneValue(cached.Value), nil
	}

	r.mu.Lock()
	key := strconv.FormatUint(r.epoch, 10) + ":" + userID
	if s := r.settled; s != nil && s.key == key && r.nowFunc().Sub(s.settledAt) < r.grace {
		r.mu.Unlock()
		metrics.RecordIdentityLookup("joined")
		return cloneValue(s.value), s.err
	}
	r.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := r.flights.DoChan(key, func() (any, error) {
		value, err := r.resolve(detached, userID, key)
		r.settle(key, value, err)
		return value, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.RecordIdentityLookup("joined")
		}
		value, _ := res.Val.(*string)
		return cloneValue(value), res.Err
	}
}

// ClearIdentityCache forgets the cached identity and detaches any resolution
// in progress; its result will not be cached.
func (r *Resolver) ClearIdentityCache(ctx context.Context) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.mu.Lock()
	r.epoch++
	r.settled = nil
	r.mu.Unlock()

	if err := r.cache.Clear(ctx); err != nil {
		r.logger.Err(err).Msg("Failed to clear identity cache")
	}
}

func (r *Resolver) resolve(ctx context.Context, userID, key string) (*string, error) {
	value, err := securecall.Call(ctx, r.guard, func(ctx context.Context) (*string, error) {
		return r.lookup.LookupMembership(ctx, userID)
	}, r.callOptions("identity_membership")...)
	if err == nil && nonEmpty(value) {
		metrics.RecordIdentityLookup("strategy_a")
		r.store(ctx, key, userID, value)
		return value, nil
	}
	if err != nil {
		r.logger.Debug().Err(err).Str("user_id", userID).Msg("Membership lookup failed, trying owned accounts")
	}

	value, err = securecall.Call(ctx, r.guard, func(ctx context.Context) (*string, error) {
		return r.lookup.LookupOwned(ctx, userID)
	}, r.callOptions("identity_owned")...)
	if err != nil {
		metrics.RecordIdentityLookup("miss")
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("Identity resolution failed")
		return nil, err
	}
	if !nonEmpty(value) {
		metrics.RecordIdentityLookup("miss")
		return nil, nil
	}
	metrics.RecordIdentityLookup("strategy_b")
	r.store(ctx, key, userID, value)
	return value, nil
}

// store caches value unless the cache was cleared since the resolution began.
func (r *Resolver) store(ctx context.Context, key, userID string, value *string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.mu.Lock()
	current := r.keyCurrentLocked(key)
	r.mu.Unlock()
	if !current {
		return
	}
	entry := CachedIdentity{Value: cloneValue(value), OwnerUserID: userID, FetchedAt: r.nowFunc()}
	if err := r.cache.Set(ctx, entry); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to cache identity")
	}
}

func (r *Resolver) settle(key string, value *string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.keyCurrentLocked(key) {
		return
	}
	r.settled = &settledResolution{key: key, value: cloneValue(value), err: err, settledAt: r.nowFunc()}
}

func (r *Resolver) keyCurrentLocked(key string) bool {
	return strings.HasPrefix(key, strconv.FormatUint(r.epoch, 10)+":")
}

func (r *Resolver) callOptions(operation string) []securecall.Option {
	opts := make([]securecall.Option, 0, len(r.callOpts)+1)
	opts = append(opts, securecall.WithOperation(operation))
	return append(opts, r.callOpts...)
}

func nonEmpty(v *string) bool {
	return v != nil && *v != ""
}

func cloneValue(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
