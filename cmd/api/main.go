// Package main is the entrypoint for the userdesk API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/userdesk/userdesk/internal/audit"
	"github.com/userdesk/userdesk/internal/auth"
	"github.com/userdesk/userdesk/internal/cache"
	"github.com/userdesk/userdesk/internal/codec"
	"github.com/userdesk/userdesk/internal/config"
	"github.com/userdesk/userdesk/internal/handler"
	"github.com/userdesk/userdesk/internal/metrics"
	"github.com/userdesk/userdesk/internal/repository"
	"github.com/userdesk/userdesk/internal/server"
	"github.com/userdesk/userdesk/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Session tokens
	tokenCodec, err := codec.New(cfg.TokenSecret)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	loc, err := cfg.TokenLocation()
	if err != nil {
		return err
	}
	policy, err := cfg.ExpiryPolicy()
	if err != nil {
		return err
	}

	if cfg.RunMigrations {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL,
		repository.WithMaxConns(cfg.DatabaseMaxConns),
		repository.WithMinConns(cfg.DatabaseMinConns),
	)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithPrincipalTTL(cfg.PrincipalCacheTTL))
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return err
	}
	logger.Info("connected to Redis")

	// Initialize services
	recorder := metrics.NewInMemory()
	userService := service.NewUserService(repo, cacheClient, recorder)

	tokens, err := auth.NewTokenManager(tokenCodec, userService,
		auth.WithTTL(cfg.TokenTTL),
		auth.WithLocation(loc),
		auth.WithExpiryPolicy(policy),
	)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	authService := service.NewAuthService(repo, tokens, recorder)

	if policy == auth.ExpiryPolicyLegacy {
		logger.Warn("token expiry policy is legacy; fresh tokens are rejected until their expiry passes")
	}

	// Audit trail
	var auditor handler.Auditor
	if cfg.AuditEnabled {
		auditor = audit.NewPublisher(cacheClient.Client(), logger, recorder)
	}

	var worker *audit.Worker
	if cfg.AuditWorkerEnabled {
		workerCfg := audit.DefaultWorkerConfig(audit.NewConsumerID())
		workerCfg.BatchSize = cfg.AuditBatchSize
		worker = audit.NewWorker(cacheClient.Client(), repo, logger, workerCfg, recorder)
	}

	r := setupRouter(routes{
		health: handler.NewHealthHandler(logger,
			handler.Dependency{Name: "postgres", Checker: repo},
			handler.Dependency{Name: "redis", Checker: cacheClient},
		),
		auth:     handler.NewAuthHandler(authService, auditor, logger),
		users:    handler.NewUserHandler(userService, auditor, logger),
		audit:    handler.NewAuditHandler(repo, logger),
		metrics:  handler.NewMetricsHandler(recorder),
		tokens:   tokens,
		limiter:  cacheClient,
		recorder: recorder,
	}, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if worker != nil {
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("audit worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("audit-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"token_ttl", cfg.TokenTTL.String(),
		"token_time_zone", loc.String(),
		"token_expiry_policy", string(policy),
		"audit_enabled", cfg.AuditEnabled,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
