// Package securecall runs remote operations against a valid session and
// retries once after recovering from a session error.
package securecall

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/metrics"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries = 1
	DefaultRetryDelay = time.Second
)

// Caller is the session guard as seen by a wrapped call. *guard.Guard
// implements it.
type Caller interface {
	EnsureFreshSession(ctx context.Context) (*sessions.Session, error)
	IsSessionError(err error) bool
	// Recover receives the context the failed attempt ran with, so the
	// session it used is available through sessions.FromContext.
	Recover(ctx context.Context, err error) bool
}

// ResponseError is implemented by backend responses that report failure in a
// field rather than as an error return. Implementations must tolerate a nil
// receiver.
type ResponseError interface {
	ResponseError() error
}

// Classifier tags a terminal failure.
type Classifier func(err error) apperrors.Classification

// DefaultClassifier treats session errors as SessionExpired and otherwise keeps
// whatever classification the error already carries.
func DefaultClassifier(err error) apperrors.Classification {
	if apperrors.IsSessionError(err) {
		return apperrors.SessionExpired
	}
	return apperrors.ClassOf(err)
}

type config struct {
	maxRetries int
	retryDelay time.Duration
	classifier Classifier
	operation  string
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*config)

// WithMaxRetries bounds the retries after session recovery; the operation runs
// at most n+1 times.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the pause between a successful recovery and the retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

func WithClassifier(classifier Classifier) Option {
	return func(c *config) {
		if classifier != nil {
			c.classifier = classifier
		}
	}
}

// WithOperation names the call in errors, logs and metrics.
func WithOperation(name string) Option {
	return func(c *config) {
		c.operation = name
	}
}

// WithSleepFunc replaces the retry delay wait.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *config) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// Call runs op against a fresh session. When there is no usable session op is
// not invoked and a SessionExpired error is returned. A session error from op
// is recovered through caller and op retried after the configured delay, up to
// the retry budget. Every other failure is returned as a
// *errors.ClassifiedError.
func Call[T any](ctx context.Context, caller Caller, op func(ctx context.Context) (T, error), options ...Option) (T, error) {
	cfg := config{
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		classifier: DefaultClassifier,
		sleep:      sleepCtx,
	}
	for _, opt := range options {
		opt(&cfg)
	}

	var zero T
	budget := cfg.maxRetries
	for {
		session, err := caller.EnsureFreshSession(ctx)
		if session == nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, fail(cfg, apperrors.Fatal, ctxErr)
			}
			if err == nil {
				err = apperrors.ErrNoSession
			}
			return zero, fail(cfg, apperrors.SessionExpired, err)
		}

		opCtx := WithSession(ctx, session)
		result, err := op(opCtx)
		if err == nil {
			err = responseError(result)
		}
		if err == nil {
			metrics.RecordSecureCall(cfg.operation, "success")
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fail(cfg, apperrors.Fatal, ctxErr)
		}
		if caller.IsSessionError(err) && budget > 0 {
			budget--
			if caller.Recover(opCtx, err) {
				log.Debug().Str("operation", cfg.operation).Dur("delay", cfg.retryDelay).Msg("Session recovered, retrying operation")
				if sleepErr := cfg.sleep(ctx, cfg.retryDelay); sleepErr != nil {
					return zero, fail(cfg, apperrors.Fatal, sleepErr)
				}
				continue
			}
		}

		return zero, fail(cfg, cfg.classifier(err), err)
	}
}

func responseError(result any) error {
	if re, ok := result.(ResponseError); ok {
		return re.ResponseError()
	}
	return nil
}

func fail(cfg config, class apperrors.Classification, err error) error {
	metrics.RecordSecureCall(cfg.operation, strings.ToLower(class.String()))
	var ce *apperrors.ClassifiedError
	if apperrors.As(err, &ce) && ce.Class == class {
		if ce.Op == "" && cfg.operation != "" {
			return &apperrors.ClassifiedError{Class: class, Op: cfg.operation, Err: ce.Err}
		}
		return ce
	}
	return &apperrors.ClassifiedError{Class: class, Op: cfg.operation, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
