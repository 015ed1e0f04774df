package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-guard/retry"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type scriptedFunc struct {
	failures int
	calls    int
	args     [][]any
}

func (f *scriptedFunc) call(_ context.Context, args ...any) (string, error) {
	f.calls++
	f.args = append(f.args, args)
	if f.calls <= f.failures {
		return "", errors.New("upstream unavailable")
	}
	return "menu", nil
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second},
		{30, 8 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, retry.Backoff(tt.n, time.Second, 8*time.Second), "n=%d", tt.n)
	}
}

func TestExecute_BoundedRetries(t *testing.T) {
	fn := &scriptedFunc{failures: 100}
	rec := &sleepRecorder{}
	var gotErr error
	errorCalls := 0

	e := retry.New(fn.call,
		retry.WithSleepFunc[string](rec.sleep),
		retry.WithOnError[string](func(err error) { errorCalls++; gotErr = err }),
	)

	data, ok := e.Execute(context.Background(), "store-1")
	require.False(t, ok)
	require.Empty(t, data)
	require.Equal(t, 4, fn.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
	require.Equal(t, 1, errorCalls)
	require.EqualError(t, gotErr, "upstream unavailable")

	state := e.State()
	require.False(t, state.IsLoading)
	require.Equal(t, "upstream unavailable", state.Err)
	require.Equal(t, 4, state.RetryCount)
}

func TestExecute_BackoffIsCapped(t *testing.T) {
	fn := &scriptedFunc{failures: 100}
	rec := &sleepRecorder{}

	e := retry.New(fn.call,
		retry.WithMaxRetries[string](6),
		retry.WithSleepFunc[string](rec.sleep),
	)
	_, ok := e.Execute(context.Background())
	require.False(t, ok)
	require.Equal(t, 7, fn.calls)
	require.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second,
		8 * time.Second, 8 * time.Second, 8 * time.Second,
	}, rec.delays)
}

func TestExecute_SucceedsAfterFailures(t *testing.T) {
	fn := &scriptedFunc{failures: 2}
	rec := &sleepRecorder{}
	var got string

	e := retry.New(fn.call,
		retry.WithSleepFunc[string](rec.sleep),
		retry.WithOnSuccess[string](func(data string) { got = data }),
	)
	data, ok := e.Execute(context.Background(), "store-1", 42)
	require.True(t, ok)
	require.Equal(t, "menu", data)
	require.Equal(t, "menu", got)
	require.Equal(t, 3, fn.calls)
	for _, args := range fn.args {
		require.Equal(t, []any{"store-1", 42}, args)
	}

	state := e.State()
	require.Equal(t, retry.State[string]{Data: "menu", RetryCount: 2}, state)
}

func TestRetry_ResetsRetryCount(t *testing.T) {
	fn := &scriptedFunc{failures: 4}
	rec := &sleepRecorder{}

	e := retry.New(fn.call, retry.WithSleepFunc[string](rec.sleep))
	_, ok := e.Execute(context.Background(), "store-1")
	require.False(t, ok)
	require.Equal(t, 4, e.State().RetryCount)

	rec.delays = nil
	data, ok := e.Retry(context.Background())
	require.True(t, ok)
	require.Equal(t, "menu", data)
	require.Equal(t, 5, fn.calls)
	require.Empty(t, rec.delays)
	require.Equal(t, []any{"store-1"}, fn.args[4])
	require.Zero(t, e.State().RetryCount)
}

func TestReset_DoesNotCall(t *testing.T) {
	fn := &scriptedFunc{}
	e := retry.New(fn.call)

	_, ok := e.Execute(context.Background())
	require.True(t, ok)
	require.Equal(t, 1, fn.calls)

	e.Reset()
	require.Equal(t, 1, fn.calls)
	require.Equal(t, retry.State[string]{}, e.State())
}

func TestSubscribe_ObservesLoadingAndResult(t *testing.T) {
	release := make(chan struct{})
	e := retry.New(func(ctx context.Context, _ ...any) (int, error) {
		<-release
		return 7, nil
	})
	ch, unsub := e.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Execute(context.Background())
	}()

	loading := <-ch
	require.True(t, loading.IsLoading)
	close(release)
	<-done

	final := <-ch
	require.False(t, final.IsLoading)
	require.Equal(t, 7, final.Data)
}

func TestExecute_ContextCancelsBackoff(t *testing.T) {
	fn := &scriptedFunc{failures: 100}
	e := retry.New(fn.call)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := e.Execute(ctx)
	require.False(t, ok)
	require.Less(t, time.Since(start), 900*time.Millisecond)
	require.Equal(t, 1, fn.calls)
	require.Equal(t, context.DeadlineExceeded.Error(), e.State().Err)
}
