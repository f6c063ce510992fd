// Package server wires the router, middleware and handlers of the interactions
// API and runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/giygas/ems-interactions-api/config"
	"github.com/giygas/ems-interactions-api/data"
	"github.com/giygas/ems-interactions-api/handlers"
	"github.com/giygas/ems-interactions-api/health"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/metrics"
	"github.com/giygas/ems-interactions-api/validation"
)

// Server represents the HTTP server
type Server struct {
	server        *http.Server
	router        chi.Router
	dataContainer *data.DataContainer
	config        *config.Config
	httpHandler   interfaces.HTTPHandler
	healthChecker interfaces.HealthChecker
	rateLimiter   *RateLimiter
	ruleStore     interfaces.RuleStore
	cleanupCtx    context.Context
	stopCleanup   context.CancelFunc
}

// NewServer creates a new server instance. ruleStore may be nil; refresh
// reloads the reference table for the admin endpoints.
func NewServer(cfg *config.Config, dataContainer *data.DataContainer, sessions interfaces.SessionStore,
	ruleStore interfaces.RuleStore, refresh func() error) *Server {
	router := chi.NewRouter()
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())

	healthChecker := health.NewHealthChecker(dataContainer, sessions, cfg.RulesRefreshAt)
	validator := validation.NewDataValidator(cfg.MaxSelection)

	s := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         net.JoinHostPort(cfg.Address, cfg.Port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:        router,
		dataContainer: dataContainer,
		config:        cfg,
		httpHandler:   handlers.NewHTTPHandler(dataContainer, validator, sessions, healthChecker, ruleStore, refresh),
		healthChecker: healthChecker,
		rateLimiter:   NewRateLimiter(),
		ruleStore:     ruleStore,
		cleanupCtx:    cleanupCtx,
		stopCleanup:   stopCleanup,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if s.config.BehindProxy {
		s.router.Use(BlockDirectAccessMiddleware) // before RealIPMiddleware to see the original RemoteAddr
	}
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(slog.Default()))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(middleware.Compress(5, "application/json"))
	s.router.Use(metrics.Metrics)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(s.rateLimiter.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.httpHandler

	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)

		r.Get("/medications", h.ServeMedications)
		r.Get("/medications/{id}", h.FindMedicationByID)

		r.Get("/interactions", h.ServeInteractionRules)
		r.Post("/interactions/check", h.CheckInteractions)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Delete("/{id}", h.DeleteSession)
			r.Post("/{id}/medications", h.AddSessionMedication)
			r.Delete("/{id}/medications/{name}", h.RemoveSessionMedication)
			r.Get("/{id}/interactions", h.CheckSessionInteractions)
		})

		if s.config.AdminJWTSecret != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(handlers.AdminAuth([]byte(s.config.AdminJWTSecret)))
				r.Post("/refresh", h.RefreshData)
				if s.ruleStore != nil && s.config.RulesSource == config.SourcePostgres {
					r.Post("/interactions", h.CreateInteractionRule)
					r.Delete("/interactions/{id}", h.DeleteInteractionRule)
				}
			})
		}
	})
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	s.rateLimiter.StartCleanup(s.cleanupCtx, 30*time.Minute)

	logging.Info("Starting server", "address", s.server.Addr, "env", s.config.Env.String())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.stopCleanup()

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if closeErr := s.server.Close(); closeErr != nil {
			logging.Error("Server close error", "error", closeErr)
			return errors.Join(err, closeErr)
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}
