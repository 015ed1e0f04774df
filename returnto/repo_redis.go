package returnto

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/redis/go-redis/v9"
)

// RedisRepo keeps the values of each login session in one Redis hash.
type RedisRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo expires untouched hashes after ttl.
func NewRedisRepo(client redis.UniversalClient, ttl time.Duration) *RedisRepo {
	return &RedisRepo{client: client, ttl: ttl}
}

func (r *RedisRepo) hashKey(sessionID string) string {
	return "returnto:" + sessions.Key(sessionID)
}

func (r *RedisRepo) Put(ctx context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	hk := r.hashKey(sessionID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, key, value)
		if r.ttl > 0 {
			pipe.Expire(ctx, hk, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[returnto RedisRepo Put] %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRepo) Take(ctx context.Context, sessionID, key string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	hk := r.hashKey(sessionID)
	var get *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, hk, key)
		pipe.HDel(ctx, hk, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("[returnto RedisRepo Take] %w: %w", apperrors.ErrUnavailable, err)
	}
	value, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("[returnto RedisRepo Take] %w", err)
	}
	return value, nil
}
