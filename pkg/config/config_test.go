package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/store"
)

const testSecret = "test-secret-key-for-testing-minimum-32-chars"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
platform:
  target_community_id: "123456789012345678"
api:
  jwt:
    secret: "`+testSecret+`"
database:
  type: sqlite
  sqlite:
    path: ":memory:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, uint64(123456789012345678), cfg.Platform.TargetCommunityID)
	assert.Equal(t, 20*time.Second, cfg.Platform.RequestTimeout)

	assert.True(t, cfg.Sync.AutoEnabled)
	assert.True(t, cfg.Sync.BatchEnabled)
	assert.Equal(t, 5*time.Second, cfg.Sync.DebounceDelay)
	assert.Equal(t, 2*time.Second, cfg.Sync.DrainInterval)
	assert.Equal(t, 2.0, cfg.Sync.DrainRate)
	assert.Equal(t, 8, cfg.Sync.SourceConcurrency)
	assert.False(t, cfg.Sync.StrictRemovals)
	assert.Zero(t, cfg.Sync.Interval)

	assert.Equal(t, 50, cfg.Batch.FlushThreshold)
	assert.Equal(t, 10, cfg.Batch.ProgressEvery)
	assert.Equal(t, 500*time.Millisecond, cfg.Batch.InterSubjectDelay)
	assert.Equal(t, 4, cfg.Batch.PrefetchConcurrency)

	assert.Equal(t, QueueBackendMemory, cfg.Queue.Backend)
	assert.Equal(t, "rolesync:pending", cfg.Queue.Redis.Key)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 10*time.Second, cfg.SettingsPollInterval)
	assert.Equal(t, store.DatabaseTypeSQLite, cfg.Database.Type)
}

func TestLoadExplicitFalseIsKept(t *testing.T) {
	path := writeConfig(t, `
platform:
  target_community_id: 42
sync:
  auto_enabled: false
  batch_enabled: false
  strict_removals: true
  debounce_delay: 750ms
  interval: 1h
api:
  enabled: false
database:
  sqlite:
    path: ":memory:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Sync.AutoEnabled)
	assert.False(t, cfg.Sync.BatchEnabled)
	assert.True(t, cfg.Sync.StrictRemovals)
	assert.Equal(t, 750*time.Millisecond, cfg.Sync.DebounceDelay)
	assert.Equal(t, time.Hour, cfg.Sync.Interval)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
platform:
  target_community_id: 42
api:
  enabled: false
database:
  sqlite:
    path: ":memory:"
`)
	t.Setenv("ROLESYNC_PLATFORM_TOKEN", "bot-token")
	t.Setenv("ROLESYNC_SYNC_DEBOUNCE_DELAY", "9s")
	t.Setenv("ROLESYNC_PLATFORM_TARGET_COMMUNITY_ID", "777")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bot-token", cfg.Platform.Token)
	assert.Equal(t, 9*time.Second, cfg.Sync.DebounceDelay)
	assert.Equal(t, uint64(777), cfg.Platform.TargetCommunityID)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ROLESYNC_PLATFORM_TARGET_COMMUNITY_ID", "42")
	t.Setenv("ROLESYNC_API_SECRET", testSecret)
	t.Setenv("ROLESYNC_DATABASE_SQLITE_PATH", filepath.Join(t.TempDir(), "rolesync.db"))

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Platform.TargetCommunityID)
	assert.True(t, cfg.Sync.AutoEnabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing target", "api:\n  enabled: false\n"},
		{"bad level", "platform:\n  target_community_id: 1\napi:\n  enabled: false\nlogging:\n  level: LOUD\n"},
		{"bad backend", "platform:\n  target_community_id: 1\napi:\n  enabled: false\nqueue:\n  backend: kafka\n"},
		{"short secret", "platform:\n  target_community_id: 1\napi:\n  jwt:\n    secret: short\n"},
		{"api without secret", "platform:\n  target_community_id: 1\n"},
		{"watch without file", "platform:\n  target_community_id: 1\napi:\n  enabled: false\nmappings:\n  watch: true\n"},
		{"bad id", "platform:\n  target_community_id: \"12x\"\napi:\n  enabled: false\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ROLESYNC_DATABASE_SQLITE_PATH", filepath.Join(t.TempDir(), "rolesync.db"))
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidateMessages(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Platform.TargetCommunityID = 1
	cfg.API.JWT.Secret = testSecret
	require.NoError(t, Validate(cfg))

	cfg.API.Port = 70000
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max")

	cfg = GetDefaultConfig()
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TargetCommunityID")

	cfg = GetDefaultConfig()
	cfg.API.JWT.Secret = testSecret
	cfg.Platform.TargetCommunityID = 1 << 63
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TargetCommunityID")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Platform.TargetCommunityID = 99
	cfg.API.JWT.Secret = testSecret
	cfg.Sync.AutoEnabled = false

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), loaded.Platform.TargetCommunityID)
	assert.False(t, loaded.Sync.AutoEnabled)
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# rolesync configuration file")

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Len(t, cfg.API.JWT.Secret, 64)

	assert.Error(t, InitConfigToPath(path, false), "existing file is kept")
	require.NoError(t, InitConfigToPath(path, true))

	t.Setenv("ROLESYNC_PLATFORM_TARGET_COMMUNITY_ID", "5")
	_, err = Load(path)
	assert.NoError(t, err)
}

func TestInitConfigUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rolesync", "config.yaml"), path)
	assert.True(t, DefaultConfigExists())
}
