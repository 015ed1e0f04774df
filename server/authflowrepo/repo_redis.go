package authflowrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisRepo shares flow state between server instances.
type RedisRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client redis.UniversalClient, ttl time.Duration) *RedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepo{client: client, ttl: ttl}
}

func (r *RedisRepo) key(state string) string {
	return "authflow:" + state
}

func (r *RedisRepo) Put(ctx context.Context, state string, authState AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState.CreatedAt.IsZero() {
		authState.CreatedAt = time.Now()
	}
	b, err := json.Marshal(authState)
	if err != nil {
		return fmt.Errorf("[authflow RedisRepo Put] %w", err)
	}
	if err := r.client.Set(ctx, r.key(state), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("[authflow RedisRepo Put] %w: %w", apperrors.ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRepo) Take(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ErrStateNotFound
	}
	b, err := r.client.GetDel(ctx, r.key(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[authflow RedisRepo Take] %w: %w", apperrors.ErrUnavailable, err)
	}
	var authState AuthFlowState
	if err := json.Unmarshal(b, &authState); err != nil {
		return nil, fmt.Errorf("[authflow RedisRepo Take] %w", err)
	}
	return &authState, nil
}
