// Package config provides centralized configuration management for the reconciler.
// It loads configuration from environment variables with sensible defaults, optionally
// overlays a YAML mapping file, and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Mapping  MappingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing the response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// DatabaseConfig holds run-history database settings.
// An empty URL disables persistence; runs are then only logged.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// HistoryLimit caps how many runs GET /api/runs returns (default: 50)
	HistoryLimit int `env:"RUN_HISTORY_LIMIT" default:"50"`

	// RetentionDays deletes stored runs older than this; 0 keeps them forever (default: 90)
	RetentionDays int `env:"RUN_RETENTION_DAYS" default:"90"`

	// RetentionInterval is how often the retention job runs (default: 24h)
	RetentionInterval time.Duration `env:"RUN_RETENTION_INTERVAL" default:"24h"`
}

// Enabled reports whether run history should be persisted.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds workbook upload and run settings.
type UploadConfig struct {
	// MaxFileSize is the maximum size of a single uploaded file in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxRequestSize bounds the whole multipart body (default: 200MB)
	MaxRequestSize int64 `env:"UPLOAD_MAX_REQUEST_SIZE" default:"209715200"`

	// MaxConcurrent is the maximum number of reconciliation runs in flight (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single run (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ReconcileLimit is requests per minute for the reconcile endpoints (default: 10)
	ReconcileLimit int `env:"RATE_LIMIT_RECONCILE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String returns a safe string representation of the config for logging.
// The database URL and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString("Server: {Host: " + strconv.Quote(c.Server.Host) + ", Port: " + strconv.Itoa(c.Server.Port) + "}, ")
	if c.Database.Enabled() {
		b.WriteString("Database: {URL: [MASKED], MaxConns: " + strconv.Itoa(c.Database.MaxConns) + "}, ")
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	b.WriteString("Upload: {MaxFileSize: " + strconv.FormatInt(c.Upload.MaxFileSize, 10) +
		", MaxConcurrent: " + strconv.Itoa(c.Upload.MaxConcurrent) + "}, ")
	b.WriteString("Security: {RequireAPIKey: " + strconv.FormatBool(c.Security.RequireAPIKey) +
		", APIKeys: " + strconv.Itoa(len(c.Security.APIKeys)) + " configured}, ")
	b.WriteString("Logging: {Level: " + strconv.Quote(c.Logging.Level) + ", Format: " + strconv.Quote(c.Logging.Format) + "}, ")
	b.WriteString("Mapping: " + c.Mapping.String())
	b.WriteString("}")
	return b.String()
}
