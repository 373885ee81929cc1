// Package config loads the API's settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // TOKEN_TIME_ZONE must resolve in minimal images

	"github.com/caarlos0/env/v10"

	"github.com/userdesk/userdesk/internal/auth"
)

// Config is the API configuration. Every field comes from an environment
// variable; see Load.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations    bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	DatabaseMaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DatabaseMinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Cache (Redis)
	RedisURL          string        `env:"REDIS_URL,required,notEmpty"`
	PrincipalCacheTTL time.Duration `env:"PRINCIPAL_CACHE_TTL" envDefault:"1m"`

	// Session tokens. TokenSecret keys the codec and must never be logged.
	TokenSecret       string        `env:"TOKEN_SECRET,required,notEmpty"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"4h"`
	TokenTimeZone     string        `env:"TOKEN_TIME_ZONE" envDefault:"UTC"`
	TokenExpiryPolicy string        `env:"TOKEN_EXPIRY_POLICY" envDefault:"legacy"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Login rate limiting (per client IP)
	LoginRateLimitEnabled bool `env:"LOGIN_RATE_LIMIT_ENABLED" envDefault:"true"`
	LoginRateLimitRPS     int  `env:"LOGIN_RATE_LIMIT_RPS" envDefault:"5"`
	LoginRateLimitBurst   int  `env:"LOGIN_RATE_LIMIT_BURST" envDefault:"10"`

	// Audit trail (Redis stream drained into Postgres)
	AuditEnabled       bool `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditWorkerEnabled bool `env:"AUDIT_WORKER_ENABLED" envDefault:"true"`
	AuditBatchSize     int  `env:"AUDIT_BATCH_SIZE" envDefault:"200"`

	// Browser origins allowed to call the API, comma separated. Exact
	// origins or "*.example.com" patterns; empty disables CORS.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Largest accepted request body in bytes.
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment reports APP_ENV=development, which relaxes HSTS and adds
// stack traces to panic logs.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// CORSOrigins returns CORSAllowedOrigins without blanks or padding.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TokenLocation resolves TokenTimeZone.
func (c *Config) TokenLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TokenTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TIME_ZONE %q: %w", c.TokenTimeZone, err)
	}
	return loc, nil
}

// ExpiryPolicy resolves TokenExpiryPolicy.
func (c *Config) ExpiryPolicy() (auth.ExpiryPolicy, error) {
	return auth.ParseExpiryPolicy(c.TokenExpiryPolicy)
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if _, err := c.TokenLocation(); err != nil {
		return err
	}
	if _, err := c.ExpiryPolicy(); err != nil {
		return err
	}
	if c.DatabaseMaxConns <= 0 || c.DatabaseMinConns < 0 || c.DatabaseMinConns > c.DatabaseMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range: %d/%d", c.DatabaseMinConns, c.DatabaseMaxConns)
	}
	if c.LoginRateLimitEnabled && (c.LoginRateLimitRPS <= 0 || c.LoginRateLimitBurst <= 0) {
		return fmt.Errorf("login rate limit requires positive RPS and burst")
	}
	if c.AuditWorkerEnabled && c.AuditBatchSize <= 0 {
		return fmt.Errorf("AUDIT_BATCH_SIZE must be positive, got %d", c.AuditBatchSize)
	}
	return nil
}

// Load reads and validates the configuration. DATABASE_URL, REDIS_URL and
// TOKEN_SECRET are required.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
