package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/batch"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

// setViperDefaults registers defaults that ApplyDefaults cannot express
// because their zero value is meaningful.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("sync.auto_enabled", true)
	v.SetDefault("sync.batch_enabled", true)
	v.SetDefault("api.enabled", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("telemetry.insecure", true)
}

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	cfg.Database.ApplyDefaults()
	applyPlatformDefaults(&cfg.Platform)
	applySyncDefaults(&cfg.Sync)
	applyBatchDefaults(&cfg.Batch)
	applyQueueDefaults(&cfg.Queue)
	cfg.API.ApplyDefaults()
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.SettingsPollInterval == 0 {
		cfg.SettingsPollInterval = 10 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.MaxBytes > 0 && cfg.BackupCount == 0 {
		cfg.BackupCount = 5
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyPlatformDefaults(cfg *PlatformConfig) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
}

func applySyncDefaults(cfg *SyncConfig) {
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = trigger.DefaultDebounceDelay
	}
	if cfg.DrainInterval == 0 {
		cfg.DrainInterval = trigger.DefaultDrainInterval
	}
	if cfg.DrainRate == 0 {
		cfg.DrainRate = trigger.DefaultDrainRate
	}
	if cfg.SourceConcurrency == 0 {
		cfg.SourceConcurrency = reconcile.DefaultSourceConcurrency
	}
}

func applyBatchDefaults(cfg *BatchConfig) {
	if cfg.FlushThreshold == 0 {
		cfg.FlushThreshold = batch.DefaultFlushThreshold
	}
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = batch.DefaultProgressEvery
	}
	if cfg.InterSubjectDelay == 0 {
		cfg.InterSubjectDelay = batch.DefaultInterSubjectDelay
	}
	if cfg.PrefetchConcurrency == 0 {
		cfg.PrefetchConcurrency = batch.DefaultPrefetchConcurrency
	}
}

func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.Backend == "" {
		cfg.Backend = QueueBackendMemory
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = trigger.DefaultRedisKey
	}
}

// GetDefaultConfig returns a Config with every default applied. The target
// community is left unset, so the result does not pass Validate until one is
// provided.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Sync: SyncConfig{
			AutoEnabled:  true,
			BatchEnabled: true,
		},
		Telemetry: TelemetryConfig{Insecure: true},
		Metrics:   MetricsConfig{Enabled: true},
	}
	cfg.API.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
