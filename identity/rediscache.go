package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the CachedIdentity of one session scope in Redis so every
// server instance serving the session shares it.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ CacheStore = (*RedisCache)(nil)

// NewRedisCache stores under "identity:<scope>". Entries expire after ttl; the
// resolver still checks FetchedAt itself.
func NewRedisCache(client redis.UniversalClient, scope string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		key:    "identity:" + scope,
		ttl:    ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context) (*CachedIdentity, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("[RedisCache Get] %w: %w", apperrors.ErrUnavailable, err)
	}
	var c CachedIdentity
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("[RedisCache Get] decode: %w", err)
	}
	return &c, nil
}

func (r *RedisCache) Set(ctx context.Context, identity CachedIdentity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("[RedisCache Set] encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("[RedisCache Set] %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}

func (r *RedisCache) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("[RedisCache Clear] %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}
