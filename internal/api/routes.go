package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouteOptions configures the router.
type RouteOptions struct {
	AllowedOrigins []string
	// TrustedProxies may set the client address via X-Forwarded-For.
	TrustedProxies []*net.IPNet
	// Authenticate guards /api. Nil serves it unauthenticated.
	Authenticate func(http.Handler) http.Handler
}

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(clientIP(opts.TrustedProxies))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Identity", "subscribeme")
			next.ServeHTTP(w, req)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		if opts.Authenticate != nil {
			r.Use(opts.Authenticate)
		}
		r.Get("/platforms", h.ListPlatforms)
		r.Route("/platforms/{platform}", func(r chi.Router) {
			r.Post("/subscribers", h.Subscribe)
			r.Delete("/subscribers/{email}", h.Unsubscribe)
			r.Post("/transactional", h.SendTransactional)
		})
		r.Get("/events", h.ListEvents)
	})

	return r
}
