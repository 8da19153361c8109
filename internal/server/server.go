// Package server mounts the health endpoints on a chi router.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/probekit/auth"
	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/observe"
)

// ErrNoHealthOptions indicates Options.Health was nil.
var ErrNoHealthOptions = errors.New("server: health options are required")

// Options configures the routes.
type Options struct {
	// Route serves the health report.
	// Default: health.DefaultRoute
	Route string

	// LivenessRoute serves a static OK. Empty disables it.
	LivenessRoute string

	// MetricsRoute serves prometheus metrics when Metrics is set.
	MetricsRoute string

	// Metrics enables the prometheus scrape endpoint.
	Metrics bool

	// Health is mounted at Route.
	Health *health.Options

	// Authenticator guards Route. Nil leaves it open.
	Authenticator auth.Authenticator

	// Logger receives one line per request.
	// Default: no-op
	Logger observe.Logger
}

// Server holds the chi router and its dependencies.
type Server struct {
	router chi.Router
	logger observe.Logger
}

// New creates a new Server and registers all routes.
func New(opts Options) (*Server, error) {
	if opts.Health == nil {
		return nil, ErrNoHealthOptions
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	s := &Server{router: chi.NewRouter(), logger: opts.Logger}
	if err := s.registerRoutes(opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes(opts Options) error {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if opts.LivenessRoute != "" {
		r.Get(opts.LivenessRoute, health.LivenessHandler())
	}
	if opts.Metrics && opts.MetricsRoute != "" {
		r.Handle(opts.MetricsRoute, promhttp.Handler())
	}

	if opts.Authenticator != nil {
		opts.Health.Use(auth.Middleware(opts.Authenticator, s.logger))
	}
	return health.MapHealthChecks(r, opts.Route, opts.Health)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info(r.Context(), "request",
			observe.F("method", r.Method),
			observe.F("path", r.URL.Path),
			observe.F("status", sw.status),
			observe.F("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
