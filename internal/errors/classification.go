package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"golang.org/x/oauth2"
)

// Classification tags a failure by how it can be recovered.
type Classification int

const (
	// Fatal failures are surfaced to the caller and never retried.
	Fatal Classification = iota
	// Transient failures may succeed on a later attempt.
	Transient
	// SessionExpired failures need a refresh or a new sign-in.
	SessionExpired
)

func (c Classification) String() string {
	switch c {
	case SessionExpired:
		return "SESSION_EXPIRED"
	case Transient:
		return "TRANSIENT"
	default:
		return "FATAL"
	}
}

// sessionMarkers are matched against normalized error messages coming back from
// the identity backend. Normalization lower-cases the message and turns '_'
// into spaces, so matching is case-insensitive: "Refresh Token Not Found" and
// "refresh_token_not_found" both hit.
var sessionMarkers = []string{
	"refresh token not found",
	"invalid refresh token",
	"token expired",
}

// ClassifiedError carries an explicit Classification alongside the cause.
type ClassifiedError struct {
	Class Classification
	Op    string
	Err   error
}

func (e *ClassifiedError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify tags err. An error that already carries a ClassifiedError keeps it.
func Classify(op string, err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		if ce.Op == "" && op != "" {
			return &ClassifiedError{Class: ce.Class, Op: op, Err: ce.Err}
		}
		return ce
	}
	return &ClassifiedError{Class: ClassOf(err), Op: op, Err: err}
}

// ClassOf derives the Classification of err without allocating a wrapper.
func ClassOf(err error) Classification {
	if err == nil {
		return Fatal
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if IsSessionError(err) {
		return SessionExpired
	}
	if IsTransient(err) {
		return Transient
	}
	return Fatal
}

// IsSessionError reports whether err means the session can no longer be used
// as is: the refresh token is missing, invalid or expired.
func IsSessionError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == SessionExpired
	}
	if errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrRefreshTokenNotFound) ||
		errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrTokenExpired) {
		return true
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return true
	}
	msg := normalizeMessage(err.Error())
	for _, marker := range sessionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func normalizeMessage(msg string) string {
	return strings.ReplaceAll(strings.ToLower(msg), "_", " ")
}

// HTTPStatusError is returned by backends that received a non-success status.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is a network or server failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
		return true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return IsRetryableHTTPStatus(statusErr.StatusCode)
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return IsRetryableHTTPStatus(re.Response.StatusCode)
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsRetryableHTTPStatus reports whether status indicates a retryable condition.
func IsRetryableHTTPStatus(status int) bool {
	switch {
	case status >= 500 && status <= 599:
		return true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
