package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/handler"
	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/middleware"
)

// routes bundles what the router serves.
type routes struct {
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	users    *handler.UserHandler
	audit    *handler.AuditHandler
	metrics  *handler.MetricsHandler
	tokens   middleware.TokenValidator
	limiter  middleware.LoginLimiter
	recorder metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(rt routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	h := handler.New()
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSOrigins()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Get("/metrics", rt.metrics.Metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: rt.limiter,
		Metrics: rt.recorder,
		Enabled: cfg.LoginRateLimitEnabled,
		RPS:     cfg.LoginRateLimitRPS,
		Burst:   cfg.LoginRateLimitBurst,
	}
	r.With(middleware.RateLimitLogin(rateLimitCfg)).Post("/login", rt.auth.Login)

	authCfg := middleware.AuthConfig{
		Logger:    logger,
		Validator: rt.tokens,
		Metrics:   rt.recorder,
	}

	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.Authenticate(authCfg))

		r.Get("/", rt.users.List)
		r.Post("/", rt.users.Create)
		r.Get("/{id}", rt.users.Get)
		r.Put("/{id}", rt.users.Update)
		r.Delete("/{id}", rt.users.Delete)
		r.Get("/{id}/audit", rt.audit.List)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
