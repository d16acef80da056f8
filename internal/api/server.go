// Package api serves the client store and the assistant over JSON HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/allaspectsdev/legalsmart/internal/assistant"
	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/metrics"
	"github.com/allaspectsdev/legalsmart/internal/store"
	"github.com/allaspectsdev/legalsmart/internal/tracing"
)

// SessionHeader carries the assistant session id in both directions.
const SessionHeader = "X-Session-ID"

// Options are the listener settings.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MaxBodySize caps request bodies; zero leaves them unbounded.
	MaxBodySize int64
	Tracing     bool
}

// Deps are the services the handlers use.
type Deps struct {
	Store     *store.Store
	Sessions  *assistant.Registry
	Collector *metrics.Collector
	Breakers  *llm.BreakerRegistry
	Logger    zerolog.Logger
	// Now defaults to time.Now and stamps export file names.
	Now func() time.Time
}

// Server is the HTTP front end. It binds the chi router to the configured
// address and provides graceful shutdown support.
type Server struct {
	router  chi.Router
	deps    Deps
	opts    Options
	log     zerolog.Logger
	httpSrv *http.Server
}

// NewServer builds the router and the underlying http.Server.
func NewServer(deps Deps, opts Options) *Server {
	if deps.Collector == nil {
		deps.Collector = metrics.NewCollector()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		deps: deps,
		opts: opts,
		log:  deps.Logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(tracing.HTTPMiddleware)
	}
	if opts.MaxBodySize > 0 {
		r.Use(middleware.RequestSize(opts.MaxBodySize))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Collector, s.sessionsGauge()))

	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleAddClient)
			r.Get("/export.csv", s.handleExport("csv"))
			r.Get("/export.xlsx", s.handleExport("xlsx"))
			r.Get("/{id}", s.handleGetClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})
		r.Get("/legal-issues", s.handleLegalIssues)
		r.Get("/models", s.handleModels)
		r.Get("/requests", s.handleListRequests)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)
			r.Post("/assistant/analyze", s.handleAnalyze)
			r.Post("/assistant/ask", s.handleAsk)
			r.Get("/assistant/summary", s.handleSummary)
			r.Get("/stats", s.handleStats)
			r.Post("/cache/clear", s.handleClearCache)
		})
	})

	s.router = r
	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Router returns the underlying chi.Router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening on the configured address. It blocks until the
// server is shut down or an error occurs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.opts.Addr).Msg("api server starting")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) sessionsGauge() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "legalsmart_sessions",
		Help: "Number of live assistant sessions.",
	}, func() float64 {
		if s.deps.Sessions == nil {
			return 0
		}
		return float64(s.deps.Sessions.Len())
	})
}

// handleHealth reports liveness and whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok", "database": "ok"}
	if err := s.deps.Store.Ping(); err != nil {
		s.log.Error().Err(err).Msg("health check: database ping failed")
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unavailable"
	}
	if s.deps.Sessions != nil {
		body["ai_enabled"] = s.deps.Sessions.AIEnabled()
	}
	writeJSON(w, status, body)
}
