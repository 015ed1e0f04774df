package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session layer
var (
	// Session errors
	ErrNoSession            = errors.New("no active session")
	ErrSessionExpired       = errors.New("session expired")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrTokenExpired         = errors.New("token expired")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing claim")

	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnavailable = errors.New("service unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
