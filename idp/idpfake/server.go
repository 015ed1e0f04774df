// Package idpfake runs an in-process OpenID Connect provider for tests. It
// speaks just enough of discovery, JWKS, the token endpoint and revocation for
// idp.Provider to work against it.
package idpfake

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-guard/token"
)

// Server is a fake OIDC issuer.
type Server struct {
	*httptest.Server

	ClientID string
	signer   *token.RSASigner

	mu            sync.Mutex
	accessTTL     time.Duration
	refreshTokens map[string]grant // refresh token -> grant
	codes         map[string]grant // authorization code -> grant
	refreshCalls  int
	refreshError  string
	revoked       []string
}

type grant struct {
	UserID string
	Email  string
	Nonce  string
}

// NewServer starts a fake issuer for clientID.
func NewServer(clientID string) (*Server, error) {
	kp, err := token.GenerateRSAKeyPair("fake-key-1", 2048)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ClientID:      clientID,
		signer:        token.NewRSASigner(kp),
		accessTTL:     time.Hour,
		refreshTokens: make(map[string]grant),
		codes:         make(map[string]grant),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", s.discovery)
	mux.HandleFunc("GET /jwks", s.jwks)
	mux.HandleFunc("POST /token", s.token)
	mux.HandleFunc("POST /revoke", s.revoke)
	s.Server = httptest.NewServer(mux)
	return s, nil
}

// Issuer returns the issuer URL.
func (s *Server) Issuer() string {
	return s.URL
}

// RevocationURL returns the revocation endpoint.
func (s *Server) RevocationURL() string {
	return s.URL + "/revoke"
}

// SetAccessTTL changes the lifetime of access tokens issued from now on.
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = ttl
}

// FailRefresh makes every refresh_token grant fail with the OAuth error code
// (e.g. "invalid_grant"). An empty code restores normal behaviour.
func (s *Server) FailRefresh(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshError = code
}

// RefreshCalls counts refresh_token grants received.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// Revoked lists the tokens revoked so far.
func (s *Server) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revoked...)
}

// IssueRefreshToken registers a refresh token for userID.
func (s *Server) IssueRefreshToken(userID, email string) string {
	rt := randomString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[rt] = grant{UserID: userID, Email: email}
	return rt
}

// IssueCode registers an authorization code that exchanges into tokens for userID.
func (s *Server) IssueCode(userID, email, nonce string) string {
	code := randomString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = grant{UserID: userID, Email: email, Nonce: nonce}
	return code
}

// AccessToken signs an access token for userID expiring at exp.
func (s *Server) AccessToken(userID string, exp time.Time) (string, error) {
	return s.signer.Sign(jwt.MapClaims{
		"iss": s.URL,
		"sub": userID,
		"aud": s.ClientID,
		"iat": time.Now().Unix(),
		"exp": exp.Unix(),
	})
}

func (s *Server) discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.URL,
		"authorization_endpoint":                s.URL + "/authorize",
		"token_endpoint":                        s.URL + "/token",
		"jwks_uri":                              s.URL + "/jwks",
		"revocation_endpoint":                   s.URL + "/revoke",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (s *Server) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.signer.JWKS())
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, "invalid_request", "malformed form")
		return
	}

	s.mu.Lock()
	var (
		g  grant
		ok bool
	)
	switch r.FormValue("grant_type") {
	case "refresh_token":
		s.refreshCalls++
		if s.refreshError != "" {
			code := s.refreshError
			s.mu.Unlock()
			oauthError(w, code, "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		rt := r.FormValue("refresh_token")
		g, ok = s.refreshTokens[rt]
		delete(s.refreshTokens, rt)
	case "authorization_code":
		code := r.FormValue("code")
		g, ok = s.codes[code]
		delete(s.codes, code)
	}
	ttl := s.accessTTL
	s.mu.Unlock()

	if !ok {
		oauthError(w, "invalid_grant", "unknown grant")
		return
	}

	now := time.Now()
	access, err := s.AccessToken(g.UserID, now.Add(ttl))
	if err != nil {
		oauthError(w, "server_error", err.Error())
		return
	}
	idClaims := jwt.MapClaims{
		"iss":   s.URL,
		"sub":   g.UserID,
		"aud":   s.ClientID,
		"email": g.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if g.Nonce != "" {
		idClaims["nonce"] = g.Nonce
	}
	idToken, err := s.signer.Sign(idClaims)
	if err != nil {
		oauthError(w, "server_error", err.Error())
		return
	}

	refresh := s.IssueRefreshToken(g.UserID, g.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"expires_in":    int(ttl.Seconds()),
		"refresh_token": refresh,
		"id_token":      idToken,
	})
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	tok := r.FormValue("token")
	s.mu.Lock()
	s.revoked = append(s.revoked, tok)
	delete(s.refreshTokens, tok)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func oauthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomString() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
