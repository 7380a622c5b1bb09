// Package apiserver provides the JSON API HTTP server
package apiserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/infrastructure/http/handlers"
	"github.com/nutriscan/tracker/internal/infrastructure/http/middleware"
	"github.com/nutriscan/tracker/internal/infrastructure/http/realtime"
	"github.com/nutriscan/tracker/internal/infrastructure/monitoring"
	"github.com/nutriscan/tracker/internal/infrastructure/security"
	"github.com/nutriscan/tracker/internal/ports/inbound"
	apperrors "github.com/nutriscan/tracker/pkg/errors"
	"github.com/nutriscan/tracker/pkg/healthcheck"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Dependencies are the collaborators the server routes to
type Dependencies struct {
	Tracker inbound.TrackerService
	Tokens  *security.TokenService
	Hub     *realtime.Hub
	Metrics *monitoring.Metrics
	Health  *healthcheck.HealthCheck
	Limiter *middleware.RateLimiter
}

// APIServer represents the tracker JSON API HTTP server
type APIServer struct {
	config  *config.Config
	logger  *zap.Logger
	deps    Dependencies
	router  *chi.Mux
	server  *http.Server
	openAPI *OpenAPIHandler
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, log *zap.Logger, deps Dependencies) *APIServer {
	s := &APIServer{
		config:  cfg,
		logger:  log.Named("api-server"),
		deps:    deps,
		openAPI: NewOpenAPIHandler(log),
	}

	s.router = s.setupRoutes()

	var handler http.Handler = s.router
	if cfg.Monitoring.EnableTracing {
		handler = otelhttp.NewHandler(handler, cfg.App.Name,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	if cfg.Server.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	return s
}

// setupRoutes configures the router and global middleware
func (s *APIServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.HTTPMiddleware)
	}
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	if s.config.Server.EnableCompression {
		r.Use(newCompressor().Handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, apperrors.NewNotFoundError("route"), 0)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, apperrors.NewBadRequestError("Method not allowed"), http.StatusMethodNotAllowed)
	})

	if s.deps.Health != nil {
		r.Get(s.config.Monitoring.HealthCheckPath, s.deps.Health.Handler())
		r.Get("/health/live", s.deps.Health.LivenessHandler())
		r.Get("/health/ready", s.deps.Health.ReadinessHandler())
	}
	if s.config.Monitoring.EnableMetrics && s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.config.Monitoring.MetricsPath, s.deps.Metrics.Handler())
	}

	r.Route("/api/v1", s.setupAPIV1Routes)

	return r
}

// setupAPIV1Routes configures API v1 endpoints. Everything except the OpenAPI
// document requires a bearer token.
func (s *APIServer) setupAPIV1Routes(r chi.Router) {
	h := handlers.NewTrackerHandlers(s.deps.Tracker, s.deps.Tokens, s.logger)

	r.Get("/openapi.yaml", s.openAPI.ServeOpenAPISpec)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(s.deps.Tokens))

		// The progress stream is long-lived and must not inherit the request timeout.
		if s.deps.Hub != nil {
			r.Get("/nutrition/progress/stream", s.deps.Hub.Handler(s.deps.Tracker.GetProgressNutrition))
		}

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(s.config.Server.RequestTimeout))
			r.Use(middleware.MaxBodySize(s.config.Server.MaxBodyBytes))

			r.Post("/auth/logout", h.Logout)

			// AI endpoints are rate limited per user
			r.Group(func(r chi.Router) {
				if s.config.RateLimit.Enable && s.deps.Limiter != nil {
					r.Use(s.deps.Limiter.Middleware)
				}
				r.With(middleware.JSONOnly()).Post("/tracker/meals", h.TrackMeal)
				r.With(middleware.JSONOnly()).Post("/tracker/describe", h.DescribeImage)
				r.Get("/recommendations", h.Recommendations)
			})

			r.Route("/history", func(r chi.Router) {
				r.With(middleware.RequireRole(security.RoleAdmin)).Get("/", h.ListAllHistory)
				r.Get("/me", h.MyHistory)
				r.Delete("/me", h.DeleteMyHistory)
			})

			r.Get("/nutrition/daily", h.DailyNutrition)
			r.Get("/nutrition/progress", h.Progress)
		})
	})
}

// Handler returns the root handler, including h2c and tracing wrappers
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start listens and serves until Shutdown is called
func (s *APIServer) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
		zap.Bool("h2c", s.config.Server.EnableH2C),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Serve accepts connections on an existing listener
func (s *APIServer) Serve(ln net.Listener) error {
	s.logger.Info("Starting API server", zap.String("address", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Server returns the underlying HTTP server instance
func (s *APIServer) Server() *http.Server {
	return s.server
}

// Shutdown gracefully shuts down the server and closes progress streams
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.server.Shutdown(ctx)
}

// newCompressor compresses JSON responses with brotli when the client accepts
// it and falls back to gzip or deflate otherwise.
func newCompressor() *chimiddleware.Compressor {
	c := chimiddleware.NewCompressor(5, "application/json", "application/yaml", "text/plain")
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c
}
