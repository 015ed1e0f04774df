package guard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-guard/events"
	"github.com/jrsteele09/go-session-guard/guard"
	"github.com/jrsteele09/go-session-guard/idp/idpfake"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/stretchr/testify/require"
)

type fakeReturnTo struct {
	mu        sync.Mutex
	locations []string
}

func (f *fakeReturnTo) SaveReturnTo(_ context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, location)
	return nil
}

func (f *fakeReturnTo) saved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.locations...)
}

type fixture struct {
	now      time.Time
	backend  *idpfake.Backend
	sink     *events.Broadcaster
	returnTo *fakeReturnTo
	guard    *guard.Guard
}

func setup(t *testing.T, expiresIn time.Duration) *fixture {
	t.Helper()
	now := time.Now()
	f := &fixture{
		now: now,
		backend: idpfake.NewBackend(&sessions.Session{
			UserID:       "user-1",
			AccessToken:  "at",
			RefreshToken: "rt",
			ExpiresAt:    now.Add(expiresIn),
		}),
		sink:     events.NewBroadcaster(events.WithBufferSize(16)),
		returnTo: &fakeReturnTo{},
	}
	f.guard = guard.New(f.backend,
		guard.WithNowFunc(func() time.Time { return now }),
		guard.WithEventSink(f.sink),
		guard.WithReturnToStore(f.returnTo),
	)
	return f
}

func TestIsSessionError(t *testing.T) {
	g := guard.New(idpfake.NewBackend(nil))

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refresh token not found marker", errors.New("AuthApiError: Invalid Refresh Token: Refresh Token Not Found"), true},
		{"snake case marker", errors.New("refresh_token_not_found"), true},
		{"token expired marker", errors.New("jwt: token expired"), true},
		{"sentinel", apperrors.ErrInvalidRefreshToken, true},
		{"classified", &apperrors.ClassifiedError{Class: apperrors.SessionExpired, Err: errors.New("x")}, true},
		{"network", errors.New("connection reset by peer"), false},
		{"not found", apperrors.ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, g.IsSessionError(tt.err))
		})
	}
}

func TestEnsureFreshSession_NoSession(t *testing.T) {
	backend := idpfake.NewBackend(nil)
	g := guard.New(backend)

	session, err := g.EnsureFreshSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, session)
	require.Zero(t, backend.RefreshCalls())
}

func TestEnsureFreshSession_OutsideLookahead(t *testing.T) {
	f := setup(t, time.Hour)

	session, err := f.guard.EnsureFreshSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "at", session.AccessToken)
	require.Zero(t, f.backend.RefreshCalls())
}

func TestEnsureFreshSession_WithinLookaheadRefreshes(t *testing.T) {
	f := setup(t, 4*time.Minute)

	session, err := f.guard.EnsureFreshSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "at+", session.AccessToken)
	require.Equal(t, 1, f.backend.RefreshCalls())
	require.Zero(t, f.backend.SignOutCalls())
}

func TestEnsureFreshSession_CustomLookahead(t *testing.T) {
	f := setup(t, 4*time.Minute)
	g := guard.New(f.backend,
		guard.WithLookahead(time.Minute),
		guard.WithNowFunc(func() time.Time { return f.now }),
	)

	session, err := g.EnsureFreshSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "at", session.AccessToken)
	require.Zero(t, f.backend.RefreshCalls())
}

func TestEnsureFreshSession_RefreshFailureSignsOut(t *testing.T) {
	f := setup(t, time.Minute)
	f.backend.FailRefresh(apperrors.ErrInvalidRefreshToken)
	ch, unsub := f.sink.Subscribe()
	defer unsub()

	ctx := guard.WithLocation(context.Background(), "/inventory?page=2")
	session, err := f.guard.EnsureFreshSession(ctx)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	require.Nil(t, session)
	require.Equal(t, 1, f.backend.SignOutCalls())
	require.Equal(t, []string{"/inventory?page=2"}, f.returnTo.saved())

	current, err := f.guard.CurrentSession(ctx)
	require.NoError(t, err)
	require.Nil(t, current)

	ev := <-ch
	require.Equal(t, events.SessionInvalid, ev.Type)
	require.Equal(t, "/login?session_expired=true", ev.Redirect)
}

func TestEnsureFreshSession_ConcurrentFailureSignsOutOnce(t *testing.T) {
	f := setup(t, time.Minute)
	f.backend.FailRefresh(errors.New("Invalid Refresh Token: Refresh Token Not Found"))
	f.backend.SetRefreshDelay(50 * time.Millisecond)
	ch, unsub := f.sink.Subscribe()
	defer unsub()

	const callers = 10
	results := make([]*sessions.Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.guard.EnsureFreshSession(context.Background())
		}(i)
	}
	wg.Wait()

	for _, session := range results {
		require.Nil(t, session)
	}

	require.Equal(t, 1, f.backend.RefreshCalls())
	require.Equal(t, 1, f.backend.SignOutCalls())
	require.Len(t, ch, 1)
}

func TestEnsureFreshSession_TransientRefreshFailureKeepsSession(t *testing.T) {
	f := setup(t, time.Minute)
	f.backend.FailRefresh(apperrors.ErrUnavailable)

	session, err := f.guard.EnsureFreshSession(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUnavailable)
	require.Nil(t, session)
	require.Zero(t, f.backend.SignOutCalls())

	current, err := f.guard.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
}

func TestHandleSessionError_IgnoresOtherErrors(t *testing.T) {
	f := setup(t, time.Hour)

	require.False(t, f.guard.HandleSessionError(context.Background(), apperrors.ErrUnavailable))
	require.Zero(t, f.backend.SignOutCalls())
	require.Empty(t, f.returnTo.saved())
}

func TestHandleSessionError_SkipsSignInLocation(t *testing.T) {
	f := setup(t, time.Hour)
	var hookCalls int
	g := guard.New(f.backend,
		guard.WithReturnToStore(f.returnTo),
		guard.WithSignOutHook(func(context.Context) { hookCalls++ }),
	)

	ctx := guard.WithLocation(context.Background(), "/login?session_expired=true")
	require.True(t, g.HandleSessionError(ctx, apperrors.ErrTokenExpired))
	require.Empty(t, f.returnTo.saved())
	require.Equal(t, 1, f.backend.SignOutCalls())
	require.Equal(t, 1, hookCalls)
}

func TestRecover(t *testing.T) {
	t.Run("refresh succeeds", func(t *testing.T) {
		f := setup(t, time.Hour)
		require.True(t, f.guard.Recover(context.Background(), apperrors.ErrTokenExpired))
		require.Equal(t, 1, f.backend.RefreshCalls())
		require.Zero(t, f.backend.SignOutCalls())
	})

	t.Run("not a session error", func(t *testing.T) {
		f := setup(t, time.Hour)
		require.False(t, f.guard.Recover(context.Background(), apperrors.ErrNotFound))
		require.Zero(t, f.backend.RefreshCalls())
	})

	t.Run("refresh fails", func(t *testing.T) {
		f := setup(t, time.Hour)
		f.backend.FailRefresh(apperrors.ErrRefreshTokenNotFound)
		require.False(t, f.guard.Recover(context.Background(), apperrors.ErrTokenExpired))
		require.Equal(t, 1, f.backend.SignOutCalls())
	})
}

func TestRefresh_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	f := setup(t, time.Minute)
	f.backend.SetRefreshDelay(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.guard.EnsureFreshSession(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		s, _ := f.guard.CurrentSession(context.Background())
		return s != nil && s.AccessToken == "at+"
	}, time.Second, 10*time.Millisecond)
}

func TestRefresh_ProactiveAndReactiveShareOneRefresh(t *testing.T) {
	f := setup(t, time.Minute)
	f.backend.FailRefresh(apperrors.ErrInvalidRefreshToken)
	f.backend.SetRefreshDelay(100 * time.Millisecond)
	ch, unsub := f.sink.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.guard.EnsureFreshSession(context.Background())
	}()
	require.Eventually(t, func() bool { return f.backend.RefreshCalls() == 1 }, time.Second, time.Millisecond)

	var recovered bool
	go func() {
		defer wg.Done()
		recovered = f.guard.Recover(context.Background(), apperrors.ErrTokenExpired)
	}()
	wg.Wait()

	require.False(t, recovered)
	require.Equal(t, 1, f.backend.RefreshCalls())
	require.Equal(t, 1, f.backend.SignOutCalls())
	require.Len(t, ch, 1)
}

func TestRecover_SkipsRefreshWhenSessionAlreadyRotated(t *testing.T) {
	f := setup(t, time.Hour)
	f.backend.SetSession(&sessions.Session{
		UserID:       "user-1",
		AccessToken:  "at+",
		RefreshToken: "rt2",
		ExpiresAt:    f.now.Add(time.Hour),
	})

	used := &sessions.Session{UserID: "user-1", AccessToken: "at", RefreshToken: "rt"}
	ctx := sessions.NewContext(context.Background(), used)
	require.True(t, f.guard.Recover(ctx, apperrors.ErrTokenExpired))
	require.Zero(t, f.backend.RefreshCalls())

	// The failed operation used the current token, so a refresh is needed.
	used.AccessToken = "at+"
	require.True(t, f.guard.Recover(sessions.NewContext(context.Background(), used), apperrors.ErrTokenExpired))
	require.Equal(t, 1, f.backend.RefreshCalls())
}

func TestHandleSessionError_AlreadySignedOut(t *testing.T) {
	f := setup(t, time.Hour)
	ch, unsub := f.sink.Subscribe()
	defer unsub()

	require.True(t, f.guard.HandleSessionError(context.Background(), apperrors.ErrTokenExpired))
	require.True(t, f.guard.HandleSessionError(context.Background(), apperrors.ErrTokenExpired))

	require.Equal(t, 1, f.backend.SignOutCalls())
	require.Len(t, ch, 1)
}
