package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/api"
)

func TestRedact(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Platform.Token = "bot-token"
	cfg.API.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Database.Postgres.Password = "pg"
	cfg.Queue.Redis.Password = ""

	redact(cfg)

	assert.Equal(t, redacted, cfg.Platform.Token)
	assert.Equal(t, redacted, cfg.API.JWT.Secret)
	assert.Equal(t, redacted, cfg.Database.Postgres.Password)
	assert.Empty(t, cfg.Queue.Redis.Password, "empty secrets stay empty")
}

func TestConfigWarnings(t *testing.T) {
	t.Setenv(api.EnvAPISecret, "")
	cfg := config.GetDefaultConfig()
	cfg.Platform.Token = ""
	cfg.API.Enabled = true
	cfg.API.JWT.Secret = "short"
	cfg.Sync.AutoEnabled = true

	warnings := configWarnings(cfg)
	assert.Len(t, warnings, 2)

	cfg.Platform.Token = "t"
	cfg.API.JWT.Secret = "0123456789abcdef0123456789abcdef"
	assert.Empty(t, configWarnings(cfg))
}
