package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/jrsteele09/go-session-guard/sessions/redisrepo"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, options ...redisrepo.Option) (*redisrepo.Repo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo, err := redisrepo.NewFromURL("redis://"+mr.Addr(), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, mr
}

func TestRepo_UpsertGetDelete(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "login-1")
	require.ErrorIs(t, err, apperrors.ErrNoSession)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, "login-1", sessions.Session{
		UserID:       "user-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
	}))
	require.True(t, mr.Exists("session:"+sessions.Key("login-1")))

	got, err := repo.Get(ctx, "login-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, "refresh", got.RefreshToken)
	require.True(t, got.ExpiresAt.Equal(expires))

	require.NoError(t, repo.Delete(ctx, "login-1"))
	_, err = repo.Get(ctx, "login-1")
	require.ErrorIs(t, err, apperrors.ErrNoSession)
}

func TestRepo_TTLAndPrefix(t *testing.T) {
	repo, mr := newRepo(t, redisrepo.WithPrefix("ops:"), redisrepo.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "login-1", sessions.Session{UserID: "user-1"}))
	require.True(t, mr.Exists("ops:"+sessions.Key("login-1")))

	mr.FastForward(2 * time.Minute)
	_, err := repo.Get(ctx, "login-1")
	require.ErrorIs(t, err, apperrors.ErrNoSession)
}

func TestRepo_Unavailable(t *testing.T) {
	repo, mr := newRepo(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "login-1")
	require.ErrorIs(t, err, apperrors.ErrUnavailable)
	require.Equal(t, apperrors.Transient, apperrors.ClassOf(err))
}
