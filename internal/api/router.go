package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"civigate/internal/api/handlers"
	apimiddleware "civigate/internal/api/middleware"
	"civigate/internal/config"
	"civigate/internal/infrastructure/cache"
	"civigate/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	cache    *cache.RedisCache
	logger   *logger.Logger
}

// NewRouter creates a new Router instance
func NewRouter(cfg config.Config, h *handlers.Handlers, c *cache.RedisCache, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		cache:    c,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Rate limiting
	if r.config.RateLimit.Enabled && r.cache != nil {
		router.Use(apimiddleware.RateLimiter(r.cache, r.config.RateLimit))
	}

	// Health check
	router.Get("/health", r.handlers.Health.Check)
	router.Get("/ready", r.handlers.Health.Ready)

	router.Route("/api/v1", func(api chi.Router) {
		// Verification challenges
		api.Route("/challenge", func(ch chi.Router) {
			ch.Post("/", r.handlers.Challenge.Create)
			ch.Get("/{id}/image", r.handlers.Challenge.Image)
			ch.Post("/{id}/verify", r.handlers.Challenge.Verify)
			ch.Post("/{id}/reset", r.handlers.Challenge.Reset)
		})

		// Report submission and tracking
		api.Route("/reports", func(rep chi.Router) {
			rep.Post("/", r.handlers.Reports.Submit)
			rep.Get("/track", r.handlers.Reports.Track)
			rep.Get("/recent", r.handlers.Reports.Recent)
			rep.Get("/journal", r.handlers.Reports.Journal)
		})

		// Uploaded media playback resolution
		api.Get("/media/{logicalID}/playback", r.handlers.Reports.Playback)

		// Document preparation checklists
		api.Route("/procedures/{procedureID}/cases/{caseID}/checklist", func(cl chi.Router) {
			cl.Get("/", r.handlers.Checklist.Get)
			cl.Post("/toggle", r.handlers.Checklist.Toggle)
			cl.Post("/expand", r.handlers.Checklist.Expand)
		})
	})

	return router
}
