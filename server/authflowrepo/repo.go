// Package authflowrepo keeps the state of sign-in flows between the redirect
// to the identity provider and the callback.
package authflowrepo

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a user may take at the identity provider.
const DefaultTTL = 10 * time.Minute

var ErrStateNotFound = errors.New("auth flow state not found")

type AuthFlowState struct {
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	ReturnURL    string    `json:"return_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repo stores flow state by the OAuth state parameter. Take is single use:
// a state is returned at most once.
type Repo interface {
	Put(ctx context.Context, state string, authState AuthFlowState) error
	Take(ctx context.Context, state string) (*AuthFlowState, error)
}
