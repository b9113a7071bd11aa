package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"skillswap-auth/internal/ratelimit"
)

// RouterConfig holds the transport settings of the router
type RouterConfig struct {
	RequireHTTPS   bool
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// NewRouter creates and configures the Chi router with all middleware and
// routes. A nil limiter disables rate limiting.
func NewRouter(cfg RouterConfig, authHandler *AuthHandler, health *HealthHandler, limiter ratelimit.Limiter, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if cfg.RequireHTTPS {
		router.Use(requireHTTPS)
	}

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	router.Use(RequestMeta)
	router.Use(MaxBody(cfg.MaxBodyBytes))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Method(http.MethodGet, "/health", health)

	router.Route("/api/auth", func(r chi.Router) {
		if limiter != nil {
			r.Use(RateLimit(limiter, logger))
		}
		authHandler.RegisterRoutes(r)
	})
	router.Route("/api/users", authHandler.RegisterUserRoutes)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return router
}
