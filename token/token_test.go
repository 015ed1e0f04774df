package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/token"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) *token.RSASigner {
	t.Helper()
	kp, err := token.GenerateRSAKeyPair("key-1", 2048)
	require.NoError(t, err)
	return token.NewRSASigner(kp)
}

func TestRSASigner_ParseUnverified(t *testing.T) {
	signer := newSigner(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	iat := time.Now().Truncate(time.Second)
	raw, err := signer.Sign(jwt.MapClaims{
		"sub":    "user-1",
		"email":  "chef@example.com",
		"tenant": "acct_123",
		"iat":    iat.Unix(),
		"exp":    exp.Unix(),
	})
	require.NoError(t, err)

	claims, err := token.ParseUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "chef@example.com", claims.Email)
	require.Equal(t, "acct_123", claims.Tenant)
	require.True(t, claims.ExpiresAt.Equal(exp))
	require.True(t, claims.IssuedAt.Equal(iat))

	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	require.NoError(t, err)
	require.Equal(t, "key-1", tok.Header["kid"])
	require.Equal(t, "RS256", tok.Header["alg"])
}

func TestRSASigner_JWKS(t *testing.T) {
	jwks := newSigner(t).JWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "key-1", jwks.Keys[0].Kid)
	require.Equal(t, "RSA", jwks.Keys[0].Kty)
	require.Equal(t, "AQAB", jwks.Keys[0].E)
	require.NotEmpty(t, jwks.Keys[0].N)
}

func TestParseUnverified_ExpiredTokenStillReadable(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	raw, err := newSigner(t).Sign(jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})
	require.NoError(t, err)

	claims, err := token.ParseUnverified(raw)
	require.NoError(t, err)
	require.True(t, claims.ExpiresAt.Equal(exp))
}

func TestParseUnverified_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		_, err := token.ParseUnverified(raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken, raw)
	}
}
