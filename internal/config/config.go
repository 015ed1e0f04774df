package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const configPathEnvVar = "CONFIG_PATH"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetDatabaseURL() string
	GetRedisURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Session
}

// New loads the configuration from the environment, layered over the YAML file
// named by CONFIG_PATH when it is set.
func New() (Config, error) {
	var c mainConfig
	if path := os.Getenv(configPathEnvVar); path != "" {
		if err := cleanenv.ReadConfig(path, &c); err != nil {
			return nil, fmt.Errorf("[config New] failed to read %s: %w", path, err)
		}
		return c, nil
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("[config New] failed to read environment: %w", err)
	}
	return c, nil
}

// MustNew is New for callers that cannot continue without configuration.
func MustNew() Config {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}
