package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = os.Getenv(alt)
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value, field.Tag.Get("unit")); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value, unit string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		switch {
		case field.Type() == durationType:
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		case unit == "bytes":
			n, err := ParseByteSize(value)
			if err != nil {
				return err
			}
			field.SetInt(n)
		default:
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseByteSize parses a byte count with an optional B, KB, MB or GB suffix
// (binary multiples, case-insensitive).
func ParseByteSize(s string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(upper, u.suffix) {
			upper = strings.TrimSpace(strings.TrimSuffix(upper, u.suffix))
			mult = u.mult
			break
		}
	}
	n, err := strconv.ParseInt(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return n * mult, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string
	positive := func(name string, v int64) {
		if v <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	positive("SERVER_SHUTDOWN_TIMEOUT", int64(c.Server.ShutdownTimeout))

	// Parse validation
	positive("PARSE_MAX_FILE_SIZE", c.Parse.MaxFileSize)
	positive("PARSE_SYNC_THRESHOLD", c.Parse.SyncThreshold)
	positive("PARSE_MAX_CONCURRENT", int64(c.Parse.MaxConcurrent))
	positive("PARSE_MAX_WAIT_TIME", int64(c.Parse.MaxWaitTime))
	positive("PARSE_JOB_TIMEOUT", int64(c.Parse.JobTimeout))
	positive("PARSE_EVENT_BUFFER", int64(c.Parse.EventBuffer))

	// Cache validation
	positive("CACHE_DATA_CAPACITY", int64(c.Cache.DataCapacity))
	positive("CACHE_DATA_TTL", int64(c.Cache.DataTTL))
	positive("CACHE_RENDER_CAPACITY", int64(c.Cache.RenderCapacity))
	positive("CACHE_RENDER_TTL", int64(c.Cache.RenderTTL))
	positive("CACHE_SWEEP_INTERVAL", int64(c.Cache.SweepInterval))
	if c.Cache.RenderCapUnderPressure <= 0 || c.Cache.RenderCapUnderPressure > c.Cache.RenderCapacity {
		errs = append(errs, fmt.Sprintf("CACHE_RENDER_CAP_UNDER_PRESSURE (%d) must be 1-%d",
			c.Cache.RenderCapUnderPressure, c.Cache.RenderCapacity))
	}

	// Memory validation
	if c.Memory.LimitBytes < 0 {
		errs = append(errs, "MEMORY_LIMIT_BYTES must be non-negative")
	}
	positive("MEMORY_MIN_SAMPLE_INTERVAL", int64(c.Memory.MinSampleInterval))
	if c.Memory.PollHigh > c.Memory.PollMedium || c.Memory.PollMedium > c.Memory.PollLow {
		errs = append(errs, "MEMORY_POLL_HIGH <= MEMORY_POLL_MEDIUM <= MEMORY_POLL_LOW must hold")
	}
	positive("MEMORY_POLL_HIGH", int64(c.Memory.PollHigh))

	// Window validation
	positive("WINDOW_PAGE_SIZE", int64(c.Window.PageSize))
	positive("WINDOW_FRAME_INTERVAL", int64(c.Window.FrameInterval))
	positive("WINDOW_BATCH_SIZE", int64(c.Window.BatchSize))
	positive("WINDOW_VIEWPORT_ROWS", int64(c.Window.ViewportRows))

	// Prefs validation
	switch strings.ToLower(c.Prefs.Backend) {
	case PrefsMemory, PrefsFile:
	case PrefsPostgres:
		if c.Prefs.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when PREFS_BACKEND is postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("PREFS_BACKEND (%q) must be one of: memory, file, postgres", c.Prefs.Backend))
	}

	// Security validation
	if c.Security.UploadRateLimit < 0 {
		errs = append(errs, "SECURITY_UPLOAD_RATE_LIMIT must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Prefs.DatabaseURL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Parse: {MaxFileSize: %d, SyncThreshold: %d, MaxConcurrent: %d}, ",
		c.Parse.MaxFileSize, c.Parse.SyncThreshold, c.Parse.MaxConcurrent)
	fmt.Fprintf(&b, "Cache: {Data: %d/%s, Render: %d/%s}, ",
		c.Cache.DataCapacity, c.Cache.DataTTL, c.Cache.RenderCapacity, c.Cache.RenderTTL)
	fmt.Fprintf(&b, "Memory: {LimitBytes: %d}, ", c.Memory.LimitBytes)
	fmt.Fprintf(&b, "Prefs: {Backend: %q, DatabaseURL: %q}, ", c.Prefs.Backend, dbURL)
	fmt.Fprintf(&b, "Security: {APIKeys: %d, TrustedProxies: %d}, ", len(c.Security.Keys()), len(c.Security.Proxies()))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
