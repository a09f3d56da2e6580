// Package config loads the rolesync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/api"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/store"
)

// EnvPrefix is the prefix of environment overrides, e.g. ROLESYNC_LOGGING_LEVEL.
const EnvPrefix = "ROLESYNC"

// Config is the static configuration of the bot.
//
// Role mappings are not part of this file: they live in the database and can
// be seeded from Mappings.File. The auto-sync toggle is persisted as a
// runtime setting and Sync.AutoEnabled only provides its initial value.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (ROLESYNC_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds graceful shutdown of the API server and the
	// in-flight reconciliation.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Database store.Config `mapstructure:"database" yaml:"database"`

	Platform PlatformConfig `mapstructure:"platform" yaml:"platform"`

	Sync SyncConfig `mapstructure:"sync" yaml:"sync"`

	Batch BatchConfig `mapstructure:"batch" yaml:"batch"`

	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`

	Mappings MappingsConfig `mapstructure:"mappings" yaml:"mappings"`

	API api.APIConfig `mapstructure:"api" yaml:"api"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// SettingsPollInterval is how often runtime settings are re-read from
	// the database. Default: 10s
	SettingsPollInterval time.Duration `mapstructure:"settings_poll_interval" validate:"gt=0" yaml:"settings_poll_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`

	// MaxBytes rotates a file output past this size. Zero disables rotation.
	MaxBytes int64 `mapstructure:"max_bytes" validate:"gte=0" yaml:"max_bytes"`

	// BackupCount is the number of rotated files kept.
	BackupCount int `mapstructure:"backup_count" validate:"gte=0" yaml:"backup_count"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector (host:port).
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of reconciliations traced (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Default: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space, goroutines
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// PlatformConfig holds the chat platform connection.
type PlatformConfig struct {
	// Token is the bot token. ROLESYNC_PLATFORM_TOKEN overrides it.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// TargetCommunityID is the community whose roles are managed.
	TargetCommunityID uint64 `mapstructure:"target_community_id" validate:"required,max=9223372036854775807" yaml:"target_community_id"`

	// RequestTimeout bounds every platform HTTP call.
	// Default: 20s
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0" yaml:"request_timeout"`
}

// SyncConfig controls reconciliation triggers.
type SyncConfig struct {
	// AutoEnabled is the initial value of the persisted auto-sync setting.
	// Default: true
	AutoEnabled bool `mapstructure:"auto_enabled" yaml:"auto_enabled"`

	// BatchEnabled allows full sweeps. Default: true
	BatchEnabled bool `mapstructure:"batch_enabled" yaml:"batch_enabled"`

	// DebounceDelay is how long a subject must be quiet before it is
	// reconciled. Default: 5s
	DebounceDelay time.Duration `mapstructure:"debounce_delay" validate:"gte=0" yaml:"debounce_delay"`

	// DrainInterval is the period of the pending queue drain. Default: 2s
	DrainInterval time.Duration `mapstructure:"drain_interval" validate:"gt=0" yaml:"drain_interval"`

	// DrainRate caps debounced reconciliations per second. Default: 2
	DrainRate float64 `mapstructure:"drain_rate" validate:"gte=0" yaml:"drain_rate"`

	// SourceConcurrency bounds parallel source community reads per
	// reconciliation. Default: 8
	SourceConcurrency int `mapstructure:"source_concurrency" validate:"gte=1" yaml:"source_concurrency"`

	// StrictRemovals reports failed removals as failed roles instead of
	// plain errors.
	StrictRemovals bool `mapstructure:"strict_removals" yaml:"strict_removals"`

	// Interval runs a periodic full sweep. Zero disables it.
	Interval time.Duration `mapstructure:"interval" validate:"gte=0" yaml:"interval"`
}

// BatchConfig tunes full sweeps.
type BatchConfig struct {
	// Default: 50
	FlushThreshold int `mapstructure:"flush_threshold" validate:"gte=1" yaml:"flush_threshold"`
	// Default: 10
	ProgressEvery int `mapstructure:"progress_every" validate:"gte=1" yaml:"progress_every"`
	// InterSubjectDelay is waited after each subject whose roles changed.
	// Default: 500ms
	InterSubjectDelay time.Duration `mapstructure:"inter_subject_delay" validate:"gte=0" yaml:"inter_subject_delay"`
	// Default: 4
	PrefetchConcurrency int `mapstructure:"prefetch_concurrency" validate:"gte=1" yaml:"prefetch_concurrency"`
}

// QueueBackend selects where pending subjects are kept.
type QueueBackend string

const (
	QueueBackendMemory QueueBackend = "memory"
	QueueBackendRedis  QueueBackend = "redis"
)

// QueueConfig selects the pending queue backend.
type QueueConfig struct {
	// Default: memory
	Backend QueueBackend `mapstructure:"backend" validate:"oneof=memory redis" yaml:"backend"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

// RedisConfig is used when Backend is redis.
type RedisConfig struct {
	// Default: localhost:6379
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" validate:"gte=0" yaml:"db"`
	// Default: rolesync:pending
	Key string `mapstructure:"key" yaml:"key"`
}

// MappingsConfig points at an optional mapping file.
type MappingsConfig struct {
	// File is imported on startup when set, replacing the stored mappings.
	File string `mapstructure:"file" yaml:"file,omitempty"`

	// Watch reimports File whenever it changes.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// MetricsConfig exposes Prometheus metrics on the API server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Default: /metrics
	Path string `mapstructure:"path" validate:"omitempty,startswith=/" yaml:"path"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath searches the default location. A missing file is not an
// error: defaults and environment overrides are used, and validation still
// runs so a missing target community is reported.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  rolesync config init\n\n"+
				"Or specify a custom config file:\n"+
				"  rolesync <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  rolesync config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML with owner-only permissions, since it may
// hold the bot token and the JWT secret.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every leaf is bound
	// explicitly for overrides of keys absent from the file.
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs binds every leaf key reachable through mapstructure tags.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reports whether a configuration file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		snowflakeDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" and raw numbers to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// snowflakeDecodeHook accepts community ids written as quoted strings, which
// is how they are usually copied from the platform client.
func snowflakeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to.Kind() != reflect.Uint64 || from.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return uint64(0), nil
		}
		id, err := strconv.ParseUint(s, 10, models.SnowflakeBits)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		return id, nil
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/rolesync, ~/.config/rolesync, or "."
// when no home directory is available.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rolesync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rolesync")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
