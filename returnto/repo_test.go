package returnto_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-session-guard/returnto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseRepo(t *testing.T, repo returnto.Repo) {
	t.Helper()
	ctx := context.Background()
	store := returnto.NewStore(repo, "login-1")

	got, err := store.TakeReturnTo(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, store.SaveReturnTo(ctx, "/recipes/42?tab=costs"))
	got, err = store.TakeReturnTo(ctx)
	require.NoError(t, err)
	require.Equal(t, "/recipes/42?tab=costs", got)

	// Read once.
	got, err = store.TakeReturnTo(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	// Other sessions are unaffected.
	other := returnto.NewStore(repo, "login-2")
	require.NoError(t, other.SaveReturnTo(ctx, "/suppliers"))
	got, err = store.TakeReturnTo(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	// Off-site targets are ignored.
	require.NoError(t, store.SaveReturnTo(ctx, "https://evil.example.com/"))
	require.NoError(t, store.SaveReturnTo(ctx, "//evil.example.com/"))
	got, err = store.TakeReturnTo(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestInMemoryRepo(t *testing.T) {
	exerciseRepo(t, returnto.NewInMemoryRepo())
}

func TestRedisRepo(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseRepo(t, returnto.NewRedisRepo(client, time.Hour))
}

func TestIsLocalPath(t *testing.T) {
	require.True(t, returnto.IsLocalPath("/inventory"))
	require.True(t, returnto.IsLocalPath("/inventory?page=2#top"))
	require.False(t, returnto.IsLocalPath(""))
	require.False(t, returnto.IsLocalPath("inventory"))
	require.False(t, returnto.IsLocalPath("//evil.example.com"))
	require.False(t, returnto.IsLocalPath("/\\evil.example.com"))
	require.False(t, returnto.IsLocalPath("https://evil.example.com"))
}
