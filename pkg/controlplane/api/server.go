package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/auth"
	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
)

// Server provides an HTTP server for the REST API.
//
// Endpoints:
//   - GET /health: Liveness check (checks the database)
//   - GET /health/ready: Readiness check
//   - GET /metrics: Prometheus metrics (when enabled)
//   - /api/v1/*: Mapping management, reconciliation, sweep, queue, settings
//     and statistics (bearer token required)
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	runtime      *runtime.Runtime
	jwtService   *auth.JWTService
	config       APIConfig
	shutdownOnce sync.Once
}

// MetricsOptions exposes a Prometheus registry on the API port.
type MetricsOptions struct {
	// Path is the route of the metrics endpoint, e.g. "/metrics". Empty
	// disables the endpoint.
	Path string
	// Gatherer is the registry to expose.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
// The JWT secret must be configured via config.JWT.Secret or the
// ROLESYNC_API_SECRET environment variable.
//
// rt may be nil, in which case only the health endpoints are mounted.
func NewServer(config APIConfig, rt *runtime.Runtime, metrics MetricsOptions) (*Server, error) {
	config.ApplyDefaults()

	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvAPISecret)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        jwtSecret,
		Issuer:        config.JWT.Issuer,
		TokenDuration: config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	router := NewRouter(rt, jwtService, metrics)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:     server,
		runtime:    rt,
		jwtService: jwtService,
		config:     config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs. Cancellation triggers graceful shutdown; nil is returned
// on a clean stop.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"health", fmt.Sprintf("http://localhost:%d/health", s.config.Port),
			"api", fmt.Sprintf("http://localhost:%d/api/v1", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// The cancelled ctx would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}

// Handler returns the server's router, for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// JWTService returns the service validating the server's tokens.
func (s *Server) JWTService() *auth.JWTService {
	return s.jwtService
}
