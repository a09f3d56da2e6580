package api

import (
	"os"
	"time"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
)

// EnvAPISecret overrides the JWT signing secret from the config file.
const EnvAPISecret = "ROLESYNC_API_SECRET"

// APIConfig configures the REST API HTTP server.
type APIConfig struct {
	// Enabled starts the HTTP server alongside the bot.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// Default: 30s. Manual reconciliations run inside the request.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// JWT configures bearer authentication for /api/v1.
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig configures token signing and validation.
type JWTConfig struct {
	// Secret is the HMAC signing key, at least 32 characters.
	// ROLESYNC_API_SECRET takes precedence over the config file.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// Issuer is the iss claim. Default: "rolesync"
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// TokenDuration is the lifetime of tokens minted by `rolesync token`.
	// Default: 24h
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

// ApplyDefaults fills in zero values.
func (c *APIConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "rolesync"
	}
	if c.JWT.TokenDuration == 0 {
		c.JWT.TokenDuration = 24 * time.Hour
	}
}

// GetJWTSecret returns the JWT secret, preferring the environment variable.
func (c *APIConfig) GetJWTSecret() string {
	envSecret := os.Getenv(EnvAPISecret)
	if envSecret != "" {
		if c.JWT.Secret != "" && c.JWT.Secret != envSecret {
			logger.Warn("JWT secret from environment variable overrides config file value",
				"env_var", EnvAPISecret)
		}
		return envSecret
	}
	return c.JWT.Secret
}

// HasJWTSecret returns whether a JWT secret is configured.
func (c *APIConfig) HasJWTSecret() bool {
	return c.GetJWTSecret() != ""
}
