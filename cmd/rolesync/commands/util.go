package commands

import (
	"context"
	"fmt"

	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/batch"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/reconcile"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/trigger"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		MaxBytes:    cfg.Logging.MaxBytes,
		BackupCount: cfg.Logging.BackupCount,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// runtimeConfig maps the file configuration onto the runtime's settings.
func runtimeConfig(cfg *config.Config) runtime.Config {
	return runtime.Config{
		TargetCommunity: cfg.Platform.TargetCommunityID,
		AutoSyncDefault: cfg.Sync.AutoEnabled,
		Reconcile: reconcile.Config{
			SourceConcurrency: cfg.Sync.SourceConcurrency,
			StrictRemovals:    cfg.Sync.StrictRemovals,
		},
		Debounce: trigger.DebounceConfig{
			Delay:         cfg.Sync.DebounceDelay,
			DrainInterval: cfg.Sync.DrainInterval,
			Rate:          cfg.Sync.DrainRate,
		},
		Batch: batch.Config{
			Enabled:             cfg.Sync.BatchEnabled,
			FlushThreshold:      cfg.Batch.FlushThreshold,
			ProgressEvery:       cfg.Batch.ProgressEvery,
			InterSubjectDelay:   cfg.Batch.InterSubjectDelay,
			PrefetchConcurrency: cfg.Batch.PrefetchConcurrency,
		},
		SweepInterval:        cfg.Sync.Interval,
		MappingFile:          cfg.Mappings.File,
		WatchMappings:        cfg.Mappings.Watch,
		SettingsPollInterval: cfg.SettingsPollInterval,
		ShutdownTimeout:      cfg.ShutdownTimeout,
	}
}

// newPendingQueue builds the configured debounce queue. The returned func
// releases its connection.
func newPendingQueue(ctx context.Context, cfg *config.Config) (trigger.PendingQueue, func(), error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendRedis:
		q, err := trigger.NewRedisQueue(ctx, trigger.RedisConfig{
			Addr:     cfg.Queue.Redis.Addr,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Key:      cfg.Queue.Redis.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Pending queue backend", "backend", "redis", "addr", cfg.Queue.Redis.Addr, "key", cfg.Queue.Redis.Key)
		return q, func() { _ = q.Close() }, nil
	default:
		logger.Info("Pending queue backend", "backend", "memory")
		return trigger.NewMemoryQueue(), func() {}, nil
	}
}
