package config

type OAuthConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetRevocationURL() string
	GetScopes() []string
}

// OAuth describes the identity backend this application signs users in with.
type OAuth struct {
	Issuer        string   `yaml:"issuer" env:"OIDC_ISSUER" env-default:"http://localhost:9000"`
	ClientID      string   `yaml:"client_id" env:"OIDC_CLIENT_ID" env-default:"restaurant-ops"`
	ClientSecret  string   `yaml:"client_secret" env:"OIDC_CLIENT_SECRET"`
	RevocationURL string   `yaml:"revocation_url" env:"OIDC_REVOCATION_URL"`
	Scopes        []string `yaml:"scopes" env:"OIDC_SCOPES" env-separator:"," env-default:"openid,profile,email,offline_access"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetIssuer() string {
	return o.Issuer
}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

// GetRevocationURL returns the RFC 7009 endpoint. Empty falls back to
// issuer + "/oauth2/revoke".
func (o OAuth) GetRevocationURL() string {
	if o.RevocationURL != "" {
		return o.RevocationURL
	}
	return o.Issuer + "/oauth2/revoke"
}

func (o OAuth) GetScopes() []string {
	return o.Scopes
}
