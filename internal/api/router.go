package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/robert-malhotra/overpass-proxy/internal/metrics"
)

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(h *Handlers, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Add middleware stack
	r.Use(middleware.RequestID)
	r.Use(RequestIDResponse) // Add X-Request-ID to response headers
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	if h.cfg.Features.EnableMetrics {
		r.Use(metrics.Middleware)
	}
	r.Use(middleware.Compress(5))
	r.Use(ContentTypeJSON)

	origins := h.cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"Link", RequestIDHeader, SnapshotIDHeader},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	if h.cfg.Features.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/", h.LandingPage)

	r.Route("/satellites", func(r chi.Router) {
		r.Get("/", h.Satellites)
		r.Get("/{satelliteId}", h.Satellite)
		if h.cfg.Features.EnableAcquisitions {
			r.Get("/{satelliteId}/acquisitions", h.Acquisitions)
		}
	})

	r.Get("/overpass", h.Overpass)
	r.Get("/overpass/dates", h.OverpassDates)
	r.Get("/timezone", h.Timezone)
	r.Get("/predict", h.Predict)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "endpoint not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	return r
}
