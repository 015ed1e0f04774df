package config

import "time"

type SessionConfig interface {
	GetRefreshLookahead() time.Duration
	GetSecureCallMaxRetries() int
	GetSecureCallRetryDelay() time.Duration
	GetIdentityTTL() time.Duration
	GetIdentityGrace() time.Duration
	GetMaxSessionAge() time.Duration
	GetClientCacheSize() int
	GetAuthRateLimit() float64
	GetAuthRateBurst() int
}

type Session struct {
	RefreshLookahead     time.Duration `yaml:"refresh_lookahead" env:"SESSION_LOOKAHEAD" env-default:"5m"`
	SecureCallMaxRetries int           `yaml:"secure_call_max_retries" env:"SECURE_CALL_MAX_RETRIES" env-default:"1"`
	SecureCallRetryDelay time.Duration `yaml:"secure_call_retry_delay" env:"SECURE_CALL_RETRY_DELAY" env-default:"1s"`
	IdentityTTL          time.Duration `yaml:"identity_ttl" env:"IDENTITY_TTL" env-default:"5m"`
	IdentityGrace        time.Duration `yaml:"identity_grace" env:"IDENTITY_GRACE" env-default:"100ms"`
	MaxSessionAge        time.Duration `yaml:"max_session_age" env:"MAX_SESSION_AGE" env-default:"720h"`
	ClientCacheSize      int           `yaml:"client_cache_size" env:"CLIENT_CACHE_SIZE" env-default:"1024"`
	AuthRateLimit        float64       `yaml:"auth_rate_limit" env:"AUTH_RATE_LIMIT" env-default:"5"`
	AuthRateBurst        int           `yaml:"auth_rate_burst" env:"AUTH_RATE_BURST" env-default:"10"`
}

var _ SessionConfig = Session{}

// GetRefreshLookahead is how close to expiry a session is refreshed before use.
func (s Session) GetRefreshLookahead() time.Duration {
	return s.RefreshLookahead
}

func (s Session) GetSecureCallMaxRetries() int {
	return s.SecureCallMaxRetries
}

func (s Session) GetSecureCallRetryDelay() time.Duration {
	return s.SecureCallRetryDelay
}

func (s Session) GetIdentityTTL() time.Duration {
	return s.IdentityTTL
}

func (s Session) GetIdentityGrace() time.Duration {
	return s.IdentityGrace
}

// GetMaxSessionAge bounds how long a login session cookie and its stored
// session survive, independent of token expiry.
func (s Session) GetMaxSessionAge() time.Duration {
	return s.MaxSessionAge
}

func (s Session) GetClientCacheSize() int {
	return s.ClientCacheSize
}

// GetAuthRateLimit is requests per second per client IP on the /auth routes.
func (s Session) GetAuthRateLimit() float64 {
	return s.AuthRateLimit
}

func (s Session) GetAuthRateBurst() int {
	return s.AuthRateBurst
}
