// Package http provides the HTTP delivery layer for the link gateway.
// It maps gateway outcomes onto status codes for the public redirect routes
// and exposes the JSON management API for creators.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/link-gateway/internal/ratelimit"
	"github.com/vadimbarashkov/link-gateway/internal/sentinel"
	httpSwagger "github.com/swaggo/http-swagger"
)

const defaultSwaggerFile = "./docs/swagger.yml"

type Option func(*routerConfig)

type routerConfig struct {
	sentinel       botSentinel
	limiter        rateLimiter
	apiLimit       ratelimit.Limit
	allowedOrigins []string
	swaggerFile    string
}

// WithBotSentinel replaces the default sentinel used by the safe-headers and
// crawler-block middleware.
func WithBotSentinel(s botSentinel) Option {
	return func(c *routerConfig) {
		c.sentinel = s
	}
}

// WithAPIRateLimit limits API requests per client IP.
func WithAPIRateLimit(limiter rateLimiter, limit ratelimit.Limit) Option {
	return func(c *routerConfig) {
		c.limiter = limiter
		c.apiLimit = limit
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(c *routerConfig) {
		c.allowedOrigins = origins
	}
}

func WithSwaggerFile(path string) Option {
	return func(c *routerConfig) {
		c.swaggerFile = path
	}
}

// NewRouter initializes and returns a new Chi router serving the redirect routes and the management API.
func NewRouter(logger *httplog.Logger, gw gateway, opts ...Option) *chi.Mux {
	cfg := &routerConfig{
		sentinel:       sentinel.New(),
		allowedOrigins: []string{"https://*"},
		swaggerFile:    defaultSwaggerFile,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(safeHeaders(cfg.sentinel))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, cfg.swaggerFile)
	})

	pub := newRedirectHandler(gw)

	r.Get("/robots.txt", handleRobots)
	r.Get("/l/{shortID}", pub.resolve)
	r.Post("/go/{shortID}/continue", pub.continueToTarget)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.allowedOrigins,
			AllowedMethods:   []string{"POST", "GET", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))
		r.Use(blockMajorCrawlers(cfg.sentinel))
		if cfg.limiter != nil {
			r.Use(rateLimit(cfg.limiter, ratelimit.RouteAPI, cfg.apiLimit))
		}

		r.Get("/ping", handlePing)

		validate := validator.New()
		h := newLinkHandler(gw, validate)

		r.Get("/stats", h.getStats)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", h.createLink)
			r.Post("/batch", h.createLinks)
			r.Post("/purge", h.purgeExpired)
			r.Patch("/{shortID}", h.updateLink)
		})
	})

	return r
}
