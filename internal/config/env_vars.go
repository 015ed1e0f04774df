package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	AppName     string `yaml:"app_name" env:"APP_NAME" env-default:"Session Guard"`
	Env         string `yaml:"env" env:"ENV" env-default:"DEV"`
	BaseURL     string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

// GetBaseURL returns the externally visible base URL (e.g., "https://app.example.com").
// The OAuth redirect URI is derived from it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetDatabaseURL returns the data backend connection string. Empty disables the
// Postgres identity lookups.
func (e EnvVars) GetDatabaseURL() string {
	return e.DatabaseURL
}

// GetRedisURL returns the Redis URL used for shared session and identity
// storage. Empty keeps everything in process memory.
func (e EnvVars) GetRedisURL() string {
	return e.RedisURL
}
