package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/smigliorini/spatialidx/internal/batch"
	"github.com/smigliorini/spatialidx/pkg/api/rest/middleware"
	"github.com/smigliorini/spatialidx/pkg/config"
	"github.com/smigliorini/spatialidx/pkg/jobs"
	"github.com/smigliorini/spatialidx/pkg/observability"
)

// Server is the monitoring/admin HTTP API (§4.M): liveness, the batch-job
// log, Prometheus exposition, and an admin-gated on-demand reindex route.
// It is additive — `spatialidx serve` is the only subcommand that starts it.
type Server struct {
	cfg        *config.Config
	handler    *Handler
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer builds a monitoring server. indexTasksPath may be empty, in
// which case /v1/reindex always reports the dataset unknown.
func NewServer(cfg *config.Config, log *observability.Logger, metrics *observability.Metrics, registry *jobs.Registry, indexTasksPath string) (*Server, error) {
	var catalog *indexCatalog
	if indexTasksPath != "" {
		tasks, err := batch.ReadIndexTasks(indexTasksPath, log)
		if err != nil {
			return nil, fmt.Errorf("loading indexing task catalog: %w", err)
		}
		catalog = newIndexCatalog(tasks)
	}

	handler := NewHandler(cfg, log, metrics, registry, catalog)

	server := &Server{
		cfg:     cfg,
		handler: handler,
		mux:     http.NewServeMux(),
	}
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         cfg.Monitoring.Address(),
		Handler:      server.withMiddleware(server.mux),
		ReadTimeout:  cfg.Monitoring.RequestTimeout,
		WriteTimeout: cfg.Monitoring.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures the monitoring API's fixed route set.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/status", s.handler.GetStatus)
	s.mux.Handle("/v1/metrics", s.handler.GetMetrics())
	s.mux.HandleFunc("/v1/reindex/", s.handler.Reindex)
}

// withMiddleware wraps the mux with a logging -> rate-limit -> auth chain,
// the teacher's REST layer chain minus the gRPC-specific pieces that no
// longer apply. There is no CORS middleware.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = loggingMiddleware(handler)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:        s.cfg.Monitoring.RateLimit.Enabled,
		RequestsPerSec: s.cfg.Monitoring.RateLimit.RequestsPerSec,
		Burst:          s.cfg.Monitoring.RateLimit.Burst,
		PerIP:          true,
	})
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)

	handler = middleware.AuthMiddleware(middleware.AuthConfig{
		Enabled:     s.cfg.Monitoring.Auth.Enabled,
		JWTSecret:   s.cfg.Monitoring.Auth.JWTSecret,
		PublicPaths: s.cfg.Monitoring.Auth.PublicPaths,
		AdminPaths:  s.cfg.Monitoring.Auth.AdminPaths,
	})(handler)

	return handler
}

// Start runs the HTTP server until Stop is called or it errors.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("monitoring server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down, giving up when ctx is done
// (runServe passes a ctx bounded by cfg.Monitoring.ShutdownTimeout).
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs every request at INFO via the standard logger.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		observability.Default().Info("request", observability.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start).String(),
		})
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code for
// logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
