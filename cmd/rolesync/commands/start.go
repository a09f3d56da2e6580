package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ambnuf14-max/saes-discord-bot/cmd/rolesync/cmdutil"
	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/internal/platform/discord"
	"github.com/ambnuf14-max/saes-discord-bot/internal/telemetry"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/config"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/api"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/store"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/metrics"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the bot",
	Long: `Connect to the platform gateway and keep the target community's roles in
sync with the role mappings until interrupted.

The bot token is read from platform.token or ROLESYNC_PLATFORM_TOKEN.

Examples:
  # Start with the default config file
  rolesync start

  # Start with a custom config file
  rolesync start --config /etc/rolesync/config.yaml

  # Override settings from the environment
  ROLESYNC_LOGGING_LEVEL=DEBUG ROLESYNC_SYNC_DEBOUNCE_DELAY=10s rolesync start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process id to this file while running")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}
	if cfg.Platform.Token == "" {
		return errors.New("platform token is not configured (set platform.token or ROLESYNC_PLATFORM_TOKEN)")
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "rolesync",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "rolesync",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("rolesync starting", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(cmdutil.Flags.ConfigFile))
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	cpStore, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = cpStore.Close() }()

	var (
		registry *prometheus.Registry
		m        *metrics.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewMetrics(registry)
		logger.Info("Metrics enabled", "path", cfg.Metrics.Path)
	}

	platform, err := discord.New(discord.Config{
		Token:          cfg.Platform.Token,
		RequestTimeout: cfg.Platform.RequestTimeout,
	})
	if err != nil {
		return err
	}

	queue, closeQueue, err := newPendingQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQueue()

	rt, err := runtime.New(runtimeConfig(cfg), cpStore, platform,
		runtime.WithQueue(queue),
		runtime.WithMetrics(m),
		runtime.WithEventSource(platform))
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}

	if cfg.API.Enabled {
		opts := api.MetricsOptions{}
		if registry != nil {
			opts = api.MetricsOptions{Path: cfg.Metrics.Path, Gatherer: registry}
		}
		apiServer, err := api.NewServer(cfg.API, rt, opts)
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		rt.SetAPIServer(apiServer)
		logger.Info("API server configured", "port", apiServer.Port())
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, fmt.Appendf(nil, "%d", os.Getpid()), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- rt.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Bot is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Bot stopped gracefully")

	case err := <-serverDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Runtime error", logger.Err(err))
			return err
		}
		logger.Info("Bot stopped")
	}

	return nil
}
