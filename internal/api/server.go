// Package api provides the HTTP ingestion and query API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/logtrail/logtrail/internal/correlate"
	"github.com/logtrail/logtrail/internal/ingest"
	"github.com/logtrail/logtrail/internal/store"
)

// Ingester processes raw log lines. Implemented by ingest.Pipeline.
type Ingester interface {
	Process(ctx context.Context, line ingest.Line) ingest.Result
	ProcessBatch(ctx context.Context, lines []ingest.Line) []ingest.Result
}

// Reporter triggers the daily summary. Implemented by report.Reporter.
type Reporter interface {
	SendDaily(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	router     chi.Router

	ingester Ingester
	store    *store.Store
	corr     *correlate.Correlator
	reporter Reporter

	authEnabled  bool
	authUsername string
	authPassword string
	limiter      *RateLimiter

	now func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithReporter enables the daily report endpoint.
func WithReporter(r Reporter) ServerOption {
	return func(s *Server) { s.reporter = r }
}

// WithBasicAuth enables HTTP Basic Auth on all endpoints except health.
func WithBasicAuth(username, password string) ServerOption {
	return func(s *Server) {
		if username != "" && password != "" {
			s.authEnabled = true
			s.authUsername = username
			s.authPassword = password
		}
	}
}

// WithRateLimiter applies IP-based rate limiting to the protected routes.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

// WithNowFunc sets the time source (for testing).
func WithNowFunc(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new API server with the given dependencies.
func NewServer(addr string, ingester Ingester, st *store.Store, corr *correlate.Correlator, opts ...ServerOption) *Server {
	router := chi.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:   router,
		ingester: ingester,
		store:    st,
		corr:     corr,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Health endpoint (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			if s.authEnabled {
				r.Use(basicAuthMiddleware(s.authUsername, s.authPassword))
			}
			r.Post("/ingest", s.handleIngest)
			r.Get("/stats", s.handleStats)
			if s.reporter != nil {
				r.Post("/report/daily", s.handleDailyReport)
			}
		})
	})
}

// Handler returns the root handler (for testing).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
