// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Parse    ParseConfig
	Cache    CacheConfig
	Memory   MemoryConfig
	Window   WindowConfig
	Prefs    PrefsConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ParseConfig holds parse job settings.
type ParseConfig struct {
	// MaxFileSize is the input size ceiling, e.g. "50MB" (default: 50MB)
	MaxFileSize int64 `env:"PARSE_MAX_FILE_SIZE" default:"50MB" unit:"bytes"`

	// SyncThreshold is the size below which parsing is synchronous (default: 5MB)
	SyncThreshold int64 `env:"PARSE_SYNC_THRESHOLD" default:"5MB" unit:"bytes"`

	// MaxConcurrent is the maximum number of parse workers (default: 4)
	MaxConcurrent int `env:"PARSE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a worker slot (default: 10s)
	MaxWaitTime time.Duration `env:"PARSE_MAX_WAIT_TIME" default:"10s"`

	// JobTimeout bounds a single worker's run time (default: 5m)
	JobTimeout time.Duration `env:"PARSE_JOB_TIMEOUT" default:"5m"`

	// EventBuffer is the capacity of a worker's event channel (default: 32)
	EventBuffer int `env:"PARSE_EVENT_BUFFER" default:"32"`
}

// CacheConfig holds Data Cache and Render Window Cache settings.
type CacheConfig struct {
	// DataCapacity is the number of parsed sheets kept (default: 5)
	DataCapacity int `env:"CACHE_DATA_CAPACITY" default:"5"`

	// DataTTL is how long a parsed sheet stays valid (default: 5m)
	DataTTL time.Duration `env:"CACHE_DATA_TTL" default:"5m"`

	// RenderCapacity is the number of computed windows kept (default: 20)
	RenderCapacity int `env:"CACHE_RENDER_CAPACITY" default:"20"`

	// RenderTTL is how long a computed window stays valid (default: 30s)
	RenderTTL time.Duration `env:"CACHE_RENDER_TTL" default:"30s"`

	// RenderCapUnderPressure is the render capacity under memory pressure (default: 10)
	RenderCapUnderPressure int `env:"CACHE_RENDER_CAP_UNDER_PRESSURE" default:"10"`

	// SweepInterval is how often expired entries are purged (default: 1m)
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" default:"1m"`
}

// MemoryConfig holds memory monitor settings.
type MemoryConfig struct {
	// LimitBytes is the memory budget; 0 discovers it from GOMEMLIMIT, the cgroup or system memory
	LimitBytes int64 `env:"MEMORY_LIMIT_BYTES" default:"0" unit:"bytes"`

	// MinSampleInterval rate-limits sampling (default: 3s)
	MinSampleInterval time.Duration `env:"MEMORY_MIN_SAMPLE_INTERVAL" default:"3s"`

	// PollHigh is the poll interval above the warning ratio (default: 5s)
	PollHigh time.Duration `env:"MEMORY_POLL_HIGH" default:"5s"`

	// PollMedium is the poll interval above the preventive ratio (default: 15s)
	PollMedium time.Duration `env:"MEMORY_POLL_MEDIUM" default:"15s"`

	// PollLow is the poll interval otherwise (default: 30s)
	PollLow time.Duration `env:"MEMORY_POLL_LOW" default:"30s"`
}

// WindowConfig holds row windowing settings.
type WindowConfig struct {
	// PageSize is the default page size in page mode (default: 500)
	PageSize int `env:"WINDOW_PAGE_SIZE" default:"500"`

	// FrameInterval is the minimum time between viewport recomputations (default: 16ms)
	FrameInterval time.Duration `env:"WINDOW_FRAME_INTERVAL" default:"16ms"`

	// BatchSize is the number of rows rendered per batch (default: 100)
	BatchSize int `env:"WINDOW_BATCH_SIZE" default:"100"`

	// ViewportRows is the default viewport height in rows (default: 40)
	ViewportRows int `env:"WINDOW_VIEWPORT_ROWS" default:"40"`
}

// Preference store backends.
const (
	PrefsMemory   = "memory"
	PrefsFile     = "file"
	PrefsPostgres = "postgres"
)

// PrefsConfig holds display preference persistence settings.
type PrefsConfig struct {
	// Backend is memory, file or postgres (default: file)
	Backend string `env:"PREFS_BACKEND" default:"file"`

	// Path is the TOML file for the file backend; empty uses the user config dir
	Path string `env:"PREFS_PATH"`

	// DatabaseURL is the PostgreSQL connection string for the postgres backend
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`
}

// SecurityConfig holds API access settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of accepted X-API-Key values; empty disables the check
	APIKeys string `env:"SECURITY_API_KEYS"`

	// TrustedProxies is a comma-separated list of CIDRs whose X-Real-IP is honored
	TrustedProxies string `env:"SECURITY_TRUSTED_PROXIES"`

	// UploadRateLimit is uploads per minute per client IP; 0 disables (default: 30)
	UploadRateLimit int `env:"SECURITY_UPLOAD_RATE_LIMIT" default:"30"`
}

// Keys returns the configured API keys.
func (c *SecurityConfig) Keys() []string { return splitList(c.APIKeys) }

// Proxies returns the configured trusted proxy CIDRs.
func (c *SecurityConfig) Proxies() []string { return splitList(c.TrustedProxies) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
