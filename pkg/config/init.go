package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# rolesync configuration file
#
# Every key can be overridden with an environment variable: upper-case the
# dotted path, replace dots with underscores and prefix ROLESYNC_, e.g.
#   ROLESYNC_PLATFORM_TOKEN, ROLESYNC_SYNC_DEBOUNCE_DELAY=10s
#
# platform.target_community_id must be set before the bot can start.

`

// InitConfig writes a default configuration to the default location and
// returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration with a freshly generated
// JWT secret to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	cfg.API.JWT.Secret = secret

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append([]byte(configHeader), data...), 0600)
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
