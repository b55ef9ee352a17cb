package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rezozero/subscribeme/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server. authenticate guards the /api routes;
// nil leaves them open.
func NewServer(cfg config.ServerConfig, svc SubscriptionService, hc *HealthChecker, authenticate func(http.Handler) http.Handler) (*Server, error) {
	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	return &Server{
		config: cfg,
		handler: SetupRoutes(NewHandlers(svc), hc, RouteOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			TrustedProxies: proxies,
			Authenticate:   authenticate,
		}),
	}, nil
}

// ListenAndServe starts the HTTP server. Write timeout leaves room for a
// full retry cycle against a slow platform.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
