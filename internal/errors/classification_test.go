package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"

	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestIsSessionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", apperrors.ErrRefreshTokenNotFound, true},
		{"wrapped sentinel", fmt.Errorf("refresh: %w", apperrors.ErrTokenExpired), true},
		{"marker in message", errors.New("AuthApiError: Invalid Refresh Token: Refresh Token Not Found"), true},
		{"underscored marker", errors.New("refresh_token_not_found"), true},
		{"token expired marker", errors.New("JWT TOKEN EXPIRED"), true},
		{"invalid_grant", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, true},
		{"other oauth error", &oauth2.RetrieveError{ErrorCode: "invalid_client"}, false},
		{"classified session", &apperrors.ClassifiedError{Class: apperrors.SessionExpired, Err: errors.New("x")}, true},
		{"classified transient with marker", &apperrors.ClassifiedError{Class: apperrors.Transient, Err: errors.New("token expired")}, false},
		{"unrelated", errors.New("permission denied for table restaurants"), false},
		{"network", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apperrors.IsSessionError(tt.err))
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassOf(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name string
		err  error
		want apperrors.Classification
	}{
		{"session", apperrors.ErrInvalidRefreshToken, apperrors.SessionExpired},
		{"503", &apperrors.HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, apperrors.Transient},
		{"429", &apperrors.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, apperrors.Transient},
		{"404", &apperrors.HTTPStatusError{StatusCode: http.StatusNotFound}, apperrors.Fatal},
		{"deadline", context.DeadlineExceeded, apperrors.Transient},
		{"canceled", context.Canceled, apperrors.Fatal},
		{"unavailable", fmt.Errorf("redis: %w", apperrors.ErrUnavailable), apperrors.Transient},
		{"connection refused", refused, apperrors.Transient},
		{"timeout", timeoutError{}, apperrors.Transient},
		{"plain", errors.New("duplicate key value"), apperrors.Fatal},
		{"explicit", &apperrors.ClassifiedError{Class: apperrors.Transient, Err: errors.New("x")}, apperrors.Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apperrors.ClassOf(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	require.Nil(t, apperrors.Classify("op", nil))

	cause := &apperrors.HTTPStatusError{StatusCode: http.StatusBadGateway}
	ce := apperrors.Classify("load_inventory", cause)
	require.Equal(t, apperrors.Transient, ce.Class)
	require.Equal(t, "load_inventory", ce.Op)
	require.ErrorIs(t, ce, error(cause))

	// An existing classification wins over the cause's.
	wrapped := fmt.Errorf("outer: %w", &apperrors.ClassifiedError{Class: apperrors.Fatal, Err: cause})
	require.Equal(t, apperrors.Fatal, apperrors.Classify("other", wrapped).Class)

	var target *apperrors.ClassifiedError
	require.True(t, errors.As(fmt.Errorf("x: %w", ce), &target))
	require.Equal(t, "TRANSIENT", target.Class.String())
}
