// Package config reads the todos API settings from the environment.
//
// Struct tags drive caarlos0/env; Load then normalizes the values and
// rejects combinations the server cannot run with, listing every problem
// at once.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	// ProjectID is the identity provider project; it is both the expected
	// audience and the suffix of the expected issuer.
	ProjectID string `env:"FIREBASE_PROJECT_ID"`
	// CertsURL serves the provider's x509 signing certificates.
	CertsURL string `env:"AUTH_CERTS_URL" envDefault:"https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"`
	// HS256Secret enables shared-secret tokens for local development.
	HS256Secret string `env:"AUTH_HS256_SECRET"`
	// RedisURL enables the verified-token cache when set.
	RedisURL string `env:"REDIS_URL"`
	// CacheTTL caps how long a verified token is remembered.
	CacheTTL time.Duration `env:"AUTH_CACHE_TTL" envDefault:"5m"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"go-todos-backend"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"20s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxBodyBytes      int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"` // debug|release|test

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"` // debug|info|warn|error|fatal|panic
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api/v1"`

	// Store
	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite|postgres
	DBPath      string `env:"DB_PATH" envDefault:"todos.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Rate limiting
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL           time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyPurgeInterval time.Duration `env:"IDEMPOTENCY_PURGE_INTERVAL" envDefault:"1h"`

	Auth AuthConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for callers that cannot continue without a config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load parses the environment, normalizes and validates the result. The
// parsed config is returned even on validation failure.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	c.GinMode = strings.ToLower(strings.TrimSpace(c.GinMode))
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.APIBasePath = normalizeBasePath(c.APIBasePath)
	c.CORS.AllowedOrigins = trimAll(c.CORS.AllowedOrigins)
	c.Auth.ProjectID = strings.TrimSpace(c.Auth.ProjectID)
}

// Validate reports every setting the server cannot run with, joined.
func (c Config) Validate() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{!oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"), "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{strings.TrimSpace(c.Port) == "", "PORT must not be empty"},
		{min(c.ReadTimeout, c.ReadHeaderTimeout, c.WriteTimeout, c.IdleTimeout, c.ShutdownTimeout) <= 0, "timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{c.MaxBodyBytes <= 0, "MAX_BODY_BYTES must be > 0"},
		{!oneOf(c.DBDriver, "sqlite", "postgres"), "DB_DRIVER must be one of: sqlite, postgres"},
		{c.DBDriver == "sqlite" && strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty"},
		{c.DBDriver == "postgres" && strings.TrimSpace(c.DatabaseURL) == "", "DATABASE_URL is required when DB_DRIVER=postgres"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.IdempotencyPurgeInterval < 0, "IDEMPOTENCY_PURGE_INTERVAL must be >= 0"},
		{c.Auth.CacheTTL < 0, "AUTH_CACHE_TTL must be >= 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	var errs []error
	for _, ck := range checks {
		if ck.bad {
			errs = append(errs, errors.New(ck.msg))
		}
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// RequireAuth reports whether token verification is configured. Only the
// serve command needs it; migrations run without an identity provider.
func (c Config) RequireAuth() error {
	if c.Auth.ProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID must not be empty")
	}
	return nil
}

// DSN returns the data source for the selected driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath yields "/x/y" from "x/y/", and "/" from blank input.
func normalizeBasePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}
