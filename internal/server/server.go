package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/tilerelay/tilerelay/internal/errors"
	"github.com/tilerelay/tilerelay/internal/observability"
	"github.com/tilerelay/tilerelay/internal/server/handlers"
	servermw "github.com/tilerelay/tilerelay/internal/server/middleware"
)

// Timeouts for the listening http.Server. WriteTimeout stays 0 by default so
// large tiles can stream through the relay.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	relay        http.Handler
	resolver     handlers.Resolver
	resolveLimit time.Duration
	health       *handlers.HealthManager
	build        handlers.BuildInfo
	corsOrigins  []string
	timeouts     Timeouts
}

// Option configures a Server.
type Option func(*Server)

// WithRelay mounts the CORS relay at /proxy and /.
func WithRelay(relay http.Handler) Option {
	return func(s *Server) { s.relay = relay }
}

// WithResolver enables the /api/v1 resolution endpoints.
func WithResolver(resolver handlers.Resolver, timeout time.Duration) Option {
	return func(s *Server) {
		s.resolver = resolver
		s.resolveLimit = timeout
	}
}

// WithHealthManager serves the /health endpoints from hm.
func WithHealthManager(hm *handlers.HealthManager) Option {
	return func(s *Server) { s.health = hm }
}

// WithBuildInfo sets what /version reports.
func WithBuildInfo(info handlers.BuildInfo) Option {
	return func(s *Server) { s.build = info }
}

// WithCORSOrigins restricts the origins allowed to read relayed responses.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithTimeouts overrides the http.Server timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(s *Server) { s.timeouts = t }
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) (*Server, error) {
	s := &Server{
		router:      chi.NewRouter(),
		host:        host,
		port:        port,
		corsOrigins: []string{"*"},
		build:       handlers.BuildInfo{Name: "tilerelay", Version: "dev"},
		timeouts: Timeouts{
			Read: 30 * time.Second,
			Idle: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := s.router
	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("host", s.host),
			zap.Int("port", s.port),
			zap.String("addr", addr))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
