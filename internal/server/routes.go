package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jub0bs/cors"

	"github.com/tilerelay/tilerelay/internal/relay"
	"github.com/tilerelay/tilerelay/internal/server/handlers"
)

// exposedHeaders are the relay headers browser code needs to read.
var exposedHeaders = []string{
	relay.HeaderSetCookie,
	relay.HeaderDisabledLocation,
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() error {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler(s.build))
	s.router.Get("/metrics", MetricsHandler)

	corsMw, err := s.corsMiddleware()
	if err != nil {
		return err
	}

	s.router.Group(func(r chi.Router) {
		r.Use(corsMw.Wrap)

		if s.resolver != nil {
			api := &handlers.ResolveHandler{Resolver: s.resolver, Timeout: s.resolveLimit}
			r.Get("/api/v1/resolve", api.Resolve)
			r.Get("/api/v1/tiles", api.Tiles)
			r.Options("/api/v1/*", noContent)
		}

		if s.relay != nil {
			// every method, OPTIONS included, reaches the CORS layer
			r.Handle("/proxy", s.relay)
			r.Handle("/", s.relay)
		}
	})
	return nil
}

func (s *Server) corsMiddleware() (*cors.Middleware, error) {
	mw, err := cors.NewMiddleware(cors.Config{
		Origins:         s.corsOrigins,
		Methods:         []string{"*"},
		RequestHeaders:  []string{"*"},
		ResponseHeaders: exposedHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("cors config: %w", err)
	}
	return mw, nil
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
