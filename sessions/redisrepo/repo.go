// Package redisrepo stores sessions in Redis so several application
// instances share sign-in state.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "session:"

// Repo implements sessions.Repo on top of a Redis client.
type Repo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ sessions.Repo = (*Repo)(nil)

type Option func(*Repo)

// WithPrefix namespaces the keys written by the repo.
func WithPrefix(prefix string) Option {
	return func(r *Repo) {
		r.prefix = prefix
	}
}

// WithTTL expires stored sessions after ttl. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(r *Repo) {
		r.ttl = ttl
	}
}

// New creates a repo using client.
func New(client *redis.Client, options ...Option) *Repo {
	r := &Repo{client: client, prefix: defaultPrefix}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// NewFromURL creates a repo with a client parsed from a redis:// URL.
func NewFromURL(url string, options ...Option) (*Repo, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("[redisrepo NewFromURL] %w", err)
	}
	return New(redis.NewClient(opts), options...), nil
}

// Client exposes the underlying client so other stores can share the connection pool.
func (r *Repo) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection.
func (r *Repo) Close() error {
	return r.client.Close()
}

func (r *Repo) key(sessionID string) string {
	return r.prefix + sessions.Key(sessionID)
}

func (r *Repo) Upsert(ctx context.Context, sessionID string, session sessions.Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	b, err := sessions.Marshal(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(sessionID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("[redisrepo Upsert] %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (sessions.Session, error) {
	if sessionID == "" {
		return sessions.Session{}, apperrors.ErrNoSession
	}
	b, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sessions.Session{}, apperrors.ErrNoSession
		}
		return sessions.Session{}, fmt.Errorf("[redisrepo Get] %w: %w", apperrors.ErrUnavailable, err)
	}
	return sessions.Unmarshal(b)
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("[redisrepo Delete] %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}
