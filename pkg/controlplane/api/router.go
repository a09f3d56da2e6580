package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/auth"
	"github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/handlers"
	apiMiddleware "github.com/ambnuf14-max/saes-discord-bot/internal/controlplane/api/middleware"
	"github.com/ambnuf14-max/saes-discord-bot/internal/logger"
	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/runtime"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check
//   - GET <metrics.Path> - Prometheus metrics
//   - /api/v1/mappings/* - Role mappings (read: viewer, write: admin)
//   - /api/v1/subjects/{id}/* - Reconcile (admin) and history (viewer)
//   - /api/v1/sessions/* - Session history (viewer)
//   - /api/v1/sweep - Sweep status (viewer) and start (admin)
//   - /api/v1/queue - Pending queue (read: viewer, clear: admin)
//   - /api/v1/settings/auto-sync - Auto-sync toggle (read: viewer, write: admin)
//   - /api/v1/stats/* - Statistics (viewer)
func NewRouter(rt *runtime.Runtime, jwtService *auth.JWTService, metrics MetricsOptions) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	healthHandler := handlers.NewHealthHandler(rt)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	if metrics.Path != "" && metrics.Gatherer != nil {
		r.Handle(metrics.Path, promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if rt == nil {
		return r
	}

	mappingHandler := handlers.NewMappingHandler(rt)
	subjectHandler := handlers.NewSubjectHandler(rt)
	syncHandler := handlers.NewSyncHandler(rt)
	statsHandler := handlers.NewStatsHandler(rt)

	readers := apiMiddleware.RequireRole(auth.RoleAdmin, auth.RoleViewer)
	admins := apiMiddleware.RequireAdmin()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiMiddleware.JWTAuth(jwtService))

		r.Route("/mappings", func(r chi.Router) {
			r.With(readers).Get("/", mappingHandler.List)
			r.With(readers).Get("/stats", mappingHandler.Stats)
			r.With(admins).Post("/", mappingHandler.Create)
			r.With(admins).Post("/import", mappingHandler.Import)

			r.Route("/{id}", func(r chi.Router) {
				r.With(readers).Get("/", mappingHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(admins)
					r.Patch("/", mappingHandler.Update)
					r.Delete("/", mappingHandler.Delete)
					r.Post("/enable", mappingHandler.Enable)
					r.Post("/disable", mappingHandler.Disable)
				})
			})
		})

		r.Route("/subjects/{id}", func(r chi.Router) {
			r.With(admins).Post("/reconcile", subjectHandler.Reconcile)
			r.Group(func(r chi.Router) {
				r.Use(readers)
				r.Get("/sessions", subjectHandler.Sessions)
				r.Get("/logs", subjectHandler.Logs)
				r.Get("/assignments", subjectHandler.Assignments)
				r.Get("/state", subjectHandler.State)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(readers)
			r.Get("/", subjectHandler.AllSessions)
			r.Get("/{id}", subjectHandler.Session)
		})

		r.Route("/sweep", func(r chi.Router) {
			r.With(readers).Get("/", syncHandler.SweepStatus)
			r.With(admins).Post("/", syncHandler.StartSweep)
		})

		r.Route("/queue", func(r chi.Router) {
			r.With(readers).Get("/", syncHandler.Queue)
			r.With(admins).Delete("/", syncHandler.ClearQueue)
		})

		r.Route("/settings/auto-sync", func(r chi.Router) {
			r.With(readers).Get("/", syncHandler.GetAutoSync)
			r.With(admins).Put("/", syncHandler.PutAutoSync)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Use(readers)
			r.Get("/", statsHandler.Summary)
			r.Get("/daily", statsHandler.Daily)
		})
	})

	return r
}

// isQuietPath returns true for health and scrape paths logged at DEBUG.
func isQuietPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Health and metrics requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		if isQuietPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
