package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/creditx/internal/config"
	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/pricing"
	"github.com/opensource-finance/creditx/internal/report"
	"github.com/opensource-finance/creditx/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, store *config.Store, engine *scoring.Engine, pricer *pricing.Pricer, repo domain.DocumentStore, cache domain.Cache, bus domain.EventBus, aggregator *report.Aggregator, info BuildInfo) *Server {
	handler := NewHandler(store, engine, pricer, repo, cache, bus, aggregator, info)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// System endpoints
	router.Get("/", handler.Root)
	router.Get("/health", handler.Health)
	router.Get("/version", handler.Version)

	// Scoring and pricing
	router.Post("/triage/underwriting", handler.TriageUnderwriting)
	router.Post("/triage/underwriting/csv", handler.TriageUnderwritingCSV)
	router.Post("/renewals/priority", handler.RenewalPriority)
	router.Post("/renewals/priority/csv", handler.RenewalPriorityCSV)
	router.Post("/pricing/suggest", handler.PricingSuggest)
	router.Post("/pricing/suggest/csv", handler.PricingSuggestCSV)

	// Policy validation
	router.Post("/policy/check", handler.PolicyCheck)

	// Weights configuration
	router.Get("/config/current", handler.ConfigCurrent)
	router.Get("/config/versions", handler.ConfigVersions)
	router.Post("/admin/reload-weights", handler.ReloadWeights)
	router.Post("/admin/weights", handler.UploadWeights)

	// Reporting
	router.Get("/reports/importance", handler.ReportImportance)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
