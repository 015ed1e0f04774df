package idp_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-guard/idp"
	"github.com/jrsteele09/go-session-guard/idp/idpfake"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID = "restaurant-ops"
	testUserID   = "user-1"
	testEmail    = "chef@example.com"
	testNonce    = "nonce-1"
)

func setupProvider(t *testing.T) (*idp.Provider, *idpfake.Server) {
	t.Helper()

	fake, err := idpfake.NewServer(testClientID)
	require.NoError(t, err)
	t.Cleanup(fake.Close)

	p, err := idp.Discover(context.Background(), idp.DiscoveryConfig{
		Issuer:      fake.Issuer(),
		ClientID:    testClientID,
		RedirectURL: "http://localhost:8080/callback",
		AuthStyle:   oauth2.AuthStyleInParams,
	}, idp.WithRevocationURL(fake.RevocationURL()))
	require.NoError(t, err)
	return p, fake
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p, fake := setupProvider(t)

	u := p.AuthCodeURL("state-1", testNonce, oauth2.GenerateVerifier())
	require.Contains(t, u, fake.Issuer()+"/authorize")
	require.Contains(t, u, "state=state-1")
	require.Contains(t, u, "nonce="+testNonce)
	require.Contains(t, u, "code_challenge_method=S256")
}

func TestProvider_Exchange(t *testing.T) {
	p, fake := setupProvider(t)
	ctx := context.Background()

	code := fake.IssueCode(testUserID, testEmail, testNonce)
	session, err := p.Exchange(ctx, code, oauth2.GenerateVerifier(), testNonce)
	require.NoError(t, err)
	require.Equal(t, testUserID, session.UserID)
	require.Equal(t, testEmail, session.Email)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.NotEmpty(t, session.IDToken)
	require.True(t, session.ExpiresAt.After(time.Now()))
}

func TestProvider_ExchangeNonceMismatch(t *testing.T) {
	p, fake := setupProvider(t)

	code := fake.IssueCode(testUserID, testEmail, testNonce)
	_, err := p.Exchange(context.Background(), code, oauth2.GenerateVerifier(), "other-nonce")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestProvider_ExchangeUnknownCode(t *testing.T) {
	p, _ := setupProvider(t)

	_, err := p.Exchange(context.Background(), "no-such-code", oauth2.GenerateVerifier(), testNonce)
	require.Error(t, err)
}

func TestProvider_Refresh(t *testing.T) {
	p, fake := setupProvider(t)
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	current := &sessions.Session{
		UserID:       testUserID,
		Email:        testEmail,
		RefreshToken: fake.IssueRefreshToken(testUserID, testEmail),
		ExpiresAt:    time.Now().Add(time.Minute),
		CreatedAt:    created,
	}

	refreshed, err := p.Refresh(ctx, current)
	require.NoError(t, err)
	require.Equal(t, 1, fake.RefreshCalls())
	require.Equal(t, testUserID, refreshed.UserID)
	require.NotEqual(t, current.RefreshToken, refreshed.RefreshToken)
	require.True(t, refreshed.ExpiresAt.After(current.ExpiresAt))
	require.True(t, refreshed.CreatedAt.Equal(created))
}

func TestProvider_RefreshInvalidGrantIsSessionError(t *testing.T) {
	p, fake := setupProvider(t)
	fake.FailRefresh("invalid_grant")

	_, err := p.Refresh(context.Background(), &sessions.Session{UserID: testUserID, RefreshToken: "rt"})
	require.Error(t, err)
	require.True(t, apperrors.IsSessionError(err))
	require.Equal(t, 1, fake.RefreshCalls())
}

func TestProvider_RefreshWithoutRefreshToken(t *testing.T) {
	p, fake := setupProvider(t)

	_, err := p.Refresh(context.Background(), &sessions.Session{UserID: testUserID})
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
	require.Zero(t, fake.RefreshCalls())
}

func TestStoreBackend(t *testing.T) {
	p, fake := setupProvider(t)
	ctx := context.Background()

	store := sessions.NewScopedStore(sessions.NewInMemoryRepo(), "login-1")
	backend := idp.NewStoreBackend(p, store)

	current, err := backend.GetSession(ctx)
	require.NoError(t, err)
	require.Nil(t, current)

	_, err = backend.RefreshSession(ctx)
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

	rt := fake.IssueRefreshToken(testUserID, testEmail)
	require.NoError(t, store.Set(ctx, &sessions.Session{UserID: testUserID, RefreshToken: rt, AccessToken: "at"}))

	refreshed, err := backend.RefreshSession(ctx)
	require.NoError(t, err)
	stored, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, refreshed.AccessToken, stored.AccessToken)

	require.NoError(t, backend.SignOut(ctx))
	stored, err = store.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, stored)
	require.Contains(t, fake.Revoked(), refreshed.RefreshToken)
	require.Contains(t, fake.Revoked(), refreshed.AccessToken)
}
