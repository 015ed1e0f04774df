// Package idp talks to the identity backend: an OpenID Connect provider that
// issues the access/refresh/ID token triple making up a Session.
package idp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/jrsteele09/go-session-guard/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Provider holds the OAuth2/OIDC client configuration shared by every session.
type Provider struct {
	oauth2Config  *oauth2.Config
	verifier      *oidc.IDTokenVerifier
	revocationURL string
	httpClient    *http.Client
	nowFunc       func() time.Time
}

type ProviderOption func(*Provider)

// WithRevocationURL enables RFC 7009 token revocation on sign-out.
func WithRevocationURL(revocationURL string) ProviderOption {
	return func(p *Provider) {
		p.revocationURL = revocationURL
	}
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

func WithNowFunc(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

// NewProvider builds a Provider from an already configured oauth2 client and
// ID token verifier.
func NewProvider(oauth2Config *oauth2.Config, verifier *oidc.IDTokenVerifier, options ...ProviderOption) *Provider {
	p := &Provider{
		oauth2Config: oauth2Config,
		verifier:     verifier,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if p.nowFunc == nil {
		p.nowFunc = time.Now
	}
	return p
}

// DiscoveryConfig carries what is needed to discover a provider by issuer URL.
type DiscoveryConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// AuthStyle pins how client credentials are sent to the token endpoint.
	// Zero auto-detects.
	AuthStyle oauth2.AuthStyle
}

// Discover fetches the issuer's OpenID configuration and builds a Provider.
func Discover(ctx context.Context, cfg DiscoveryConfig, options ...ProviderOption) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("[idp Discover] failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	endpoint := provider.Endpoint()
	endpoint.AuthStyle = cfg.AuthStyle

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return NewProvider(oauth2Config, verifier, options...), nil
}

// AuthCodeURL returns the authorization URL for a PKCE protected sign-in.
func (p *Provider) AuthCodeURL(state, nonce, codeVerifier string) string {
	return p.oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.S256ChallengeOption(codeVerifier))
}

// Exchange trades an authorization code for a new Session. The ID token must
// carry expectedNonce.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier, expectedNonce string) (*sessions.Session, error) {
	tok, err := p.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("[idp Exchange] token exchange failed: %w", err)
	}
	session, nonce, err := p.sessionFromToken(ctx, tok, nil)
	if err != nil {
		return nil, fmt.Errorf("[idp Exchange] %w", err)
	}
	if nonce != expectedNonce {
		return nil, fmt.Errorf("[idp Exchange] %w: nonce mismatch", apperrors.ErrInvalidToken)
	}
	return session, nil
}

// Refresh runs the refresh_token grant for current and returns the new Session.
func (p *Provider) Refresh(ctx context.Context, current *sessions.Session) (*sessions.Session, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, apperrors.ErrRefreshTokenNotFound
	}
	// An empty access token forces the token source to use the refresh token.
	src := p.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("[idp Refresh] %w", err)
	}
	session, _, err := p.sessionFromToken(ctx, tok, current)
	if err != nil {
		return nil, fmt.Errorf("[idp Refresh] %w", err)
	}
	return session, nil
}

// Revoke revokes the tokens of session at the revocation endpoint. Failures are
// logged; sign-out proceeds regardless.
func (p *Provider) Revoke(ctx context.Context, session *sessions.Session) {
	if p.revocationURL == "" || session == nil {
		return
	}
	if session.RefreshToken != "" {
		p.revokeToken(ctx, session.RefreshToken, "refresh_token")
	}
	if session.AccessToken != "" {
		p.revokeToken(ctx, session.AccessToken, "access_token")
	}
}

func (p *Provider) revokeToken(ctx context.Context, tok, tokenTypeHint string) {
	form := url.Values{}
	form.Set("token", tok)
	form.Set("token_type_hint", tokenTypeHint)
	form.Set("client_id", p.oauth2Config.ClientID)
	form.Set("client_secret", p.oauth2Config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to build revocation request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("token_type", tokenTypeHint).Msg("Token revocation rejected")
	}
}

// sessionFromToken converts an oauth2 token response into a Session. Values
// the response omits (a rotated-away refresh token, the ID token on refresh)
// are carried over from prev.
func (p *Provider) sessionFromToken(ctx context.Context, tok *oauth2.Token, prev *sessions.Session) (*sessions.Session, string, error) {
	session := &sessions.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		CreatedAt:    p.nowFunc(),
	}
	if prev != nil {
		session.UserID = prev.UserID
		session.Email = prev.Email
		session.IDToken = prev.IDToken
		if !prev.CreatedAt.IsZero() {
			session.CreatedAt = prev.CreatedAt
		}
		if session.RefreshToken == "" {
			session.RefreshToken = prev.RefreshToken
		}
	}

	var nonce string
	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, "", fmt.Errorf("ID token verification failed: %w", err)
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, "", fmt.Errorf("failed to extract claims: %w", err)
		}
		session.IDToken = rawIDToken
		session.UserID = idToken.Subject
		session.Email = claims.Email
		nonce = idToken.Nonce
	}

	// Opaque access tokens fail to parse; the ID token and token response
	// already provide what is needed in that case.
	if session.ExpiresAt.IsZero() || session.UserID == "" {
		if claims, err := token.ParseUnverified(session.AccessToken); err == nil {
			if session.ExpiresAt.IsZero() {
				session.ExpiresAt = claims.ExpiresAt
			}
			if session.UserID == "" {
				session.UserID = claims.Subject
			}
		}
	}

	if session.UserID == "" {
		return nil, "", fmt.Errorf("%w: token response carries no subject", apperrors.ErrMissingClaim)
	}
	return session, nonce, nil
}
