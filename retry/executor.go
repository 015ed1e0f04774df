// Package retry wraps a fallible function with bounded exponential backoff and
// exposes loading/data/error state for presentation code.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-guard/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 8 * time.Second
)

// Func is the wrapped operation. args are whatever Execute was called with.
type Func[T any] func(ctx context.Context, args ...any) (T, error)

// State is the observable state of an Executor.
type State[T any] struct {
	Data       T
	IsLoading  bool
	Err        string
	RetryCount int
}

// Executor runs a Func with retries. Executors are independent of each other.
type Executor[T any] struct {
	fn         Func[T]
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	onSuccess  func(T)
	onError    func(error)
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger

	mu          sync.Mutex
	state       State[T]
	lastArgs    []any
	generation  uint64
	subscribers map[chan State[T]]struct{}
}

type Option[T any] func(*Executor[T])

func WithMaxRetries[T any](n int) Option[T] {
	return func(e *Executor[T]) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithBackoff changes the first delay and the cap.
func WithBackoff[T any](base, ceiling time.Duration) Option[T] {
	return func(e *Executor[T]) {
		e.baseDelay = base
		e.maxDelay = ceiling
	}
}

func WithOnSuccess[T any](fn func(T)) Option[T] {
	return func(e *Executor[T]) {
		e.onSuccess = fn
	}
}

func WithOnError[T any](fn func(error)) Option[T] {
	return func(e *Executor[T]) {
		e.onError = fn
	}
}

// WithSleepFunc replaces the backoff wait.
func WithSleepFunc[T any](sleep func(ctx context.Context, d time.Duration) error) Option[T] {
	return func(e *Executor[T]) {
		e.sleep = sleep
	}
}

func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(e *Executor[T]) {
		e.logger = logger
	}
}

func New[T any](fn Func[T], options ...Option[T]) *Executor[T] {
	e := &Executor[T]{
		fn:          fn,
		maxRetries:  DefaultMaxRetries,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		sleep:       sleepCtx,
		logger:      log.Logger,
		subscribers: make(map[chan State[T]]struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Backoff returns the wait after the n-th failed attempt (n >= 1):
// base * 2^(n-1), capped at ceiling.
func Backoff(n int, base, ceiling time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// Execute calls the function with args, retrying failures up to the retry
// budget. It returns the data and true on success, or the zero value and
// false once the budget is spent or ctx is done.
func (e *Executor[T]) Execute(ctx context.Context, args ...any) (T, bool) {
	e.mu.Lock()
	e.lastArgs = args
	e.mu.Unlock()
	return e.run(ctx, args)
}

// Retry re-runs the last Execute with a fresh retry budget.
func (e *Executor[T]) Retry(ctx context.Context) (T, bool) {
	e.mu.Lock()
	args := e.lastArgs
	e.mu.Unlock()
	return e.run(ctx, args)
}

// Reset returns the state to its initial value without calling the function.
// Runs still in progress stop publishing state.
func (e *Executor[T]) Reset() {
	e.mu.Lock()
	e.generation++
	e.lastArgs = nil
	e.setLocked(State[T]{})
	e.mu.Unlock()
}

func (e *Executor[T]) State() State[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe delivers state changes until the returned func is called. The
// channel holds only the latest state; slow readers skip intermediate ones.
func (e *Executor[T]) Subscribe() (<-chan State[T], func()) {
	ch := make(chan State[T], 1)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, ch)
			e.mu.Unlock()
			close(ch)
		})
	}
}

func (e *Executor[T]) run(ctx context.Context, args []any) (T, bool) {
	var zero T

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.setLocked(State[T]{Data: e.state.Data, IsLoading: true})
	e.mu.Unlock()

	retryCount := 0
	for retryCount <= e.maxRetries {
		data, err := e.fn(ctx, args...)
		metrics.RecordRetryAttempt(err == nil)
		if err == nil {
			if e.update(gen, State[T]{Data: data, RetryCount: retryCount}) && e.onSuccess != nil {
				e.onSuccess(data)
			}
			return data, true
		}

		retryCount++
		if retryCount > e.maxRetries {
			e.logger.Warn().Err(err).Int("retry_count", retryCount).Msg("Retries exhausted")
			if e.update(gen, State[T]{Err: err.Error(), RetryCount: retryCount}) && e.onError != nil {
				e.onError(err)
			}
			return zero, false
		}

		delay := Backoff(retryCount, e.baseDelay, e.maxDelay)
		e.logger.Debug().Err(err).Int("retry_count", retryCount).Dur("delay", delay).Msg("Attempt failed, backing off")
		e.update(gen, State[T]{Data: zero, IsLoading: true, RetryCount: retryCount})

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			if e.update(gen, State[T]{Err: sleepErr.Error(), RetryCount: retryCount}) && e.onError != nil {
				e.onError(sleepErr)
			}
			return zero, false
		}
	}
	return zero, false
}

// update publishes s unless a newer run or a Reset superseded gen.
func (e *Executor[T]) update(gen uint64, s State[T]) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return false
	}
	e.setLocked(s)
	return true
}

func (e *Executor[T]) setLocked(s State[T]) {
	e.state = s
	for ch := range e.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
