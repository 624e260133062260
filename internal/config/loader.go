package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	listType     = reflect.TypeOf([]string(nil))
)

// Load reads the configuration from the environment, fills in defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := fill(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// fill sets every env-tagged field of the struct v, descending into the
// section structs.
func fill(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if sf.Type.Kind() == reflect.Struct {
			if err := fill(fv); err != nil {
				return err
			}
			continue
		}

		name, ok := sf.Tag.Lookup("env")
		if !ok {
			continue
		}
		raw, err := lookupEnv(name, sf.Tag)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := parseInto(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookupEnv returns the first non-empty of the variable, its envAlt
// variable and the default tag.
func lookupEnv(name string, tag reflect.StructTag) (string, error) {
	for _, key := range []string{name, tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}
	if tag.Get("required") == "true" {
		return "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return tag.Get("default"), nil
}

// parseInto decodes raw into the field. Lists are comma separated with
// blank entries dropped.
func parseInto(f reflect.Value, raw string) error {
	switch {
	case f.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
	case f.Type() == listType:
		var list []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		f.Set(reflect.ValueOf(list))
	case f.Kind() == reflect.String:
		f.SetString(raw)
	case f.Kind() == reflect.Int, f.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, f.Type().Bits())
		if err != nil {
			return err
		}
		f.SetInt(n)
	case f.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	db := c.Database
	if db.URL == "" {
		fail("DATABASE_URL is required")
	}
	if db.MaxConns < db.MinConns {
		fail("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
	}
	if db.MaxConns <= 0 {
		fail("DB_MAX_CONNS must be positive")
	}
	if db.MinConns < 0 {
		fail("DB_MIN_CONNS must be non-negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		fail("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		fail("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	for _, p := range []struct {
		name string
		bad  bool
	}{
		{"IMPORT_MAX_FILE_SIZE", c.Import.MaxFileSize <= 0},
		{"IMPORT_MAX_CONCURRENT", c.Import.MaxConcurrent <= 0},
		{"IMPORT_MAX_WAIT_TIME", c.Import.MaxWaitTime <= 0},
		{"IMPORT_TIMEOUT", c.Import.Timeout <= 0},
		{"HISTORY_RETENTION_DAYS", c.History.RetentionDays <= 0},
	} {
		if p.bad {
			fail("%s must be positive", p.name)
		}
	}
	if _, err := c.Import.LockedStatuses(); err != nil {
		fail("IMPORT_LOCKED_BID_STATUSES: %v", err)
	}

	if c.Rate.Enabled {
		if c.Rate.RequestsPerMinute <= 0 {
			fail("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		}
		if c.Rate.ImportLimit <= 0 {
			fail("RATE_LIMIT_IMPORT must be positive when rate limiting is enabled")
		}
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		fail("REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	if _, err := c.Comparison.Baseline(); err != nil {
		fail("COMPARISON_DEFAULT_BASELINE: %v", err)
	}
	if _, err := cron.ParseStandard(c.History.PurgeSchedule); err != nil {
		fail("HISTORY_PURGE_SCHEDULE (%q) is not a valid cron expression: %v", c.History.PurgeSchedule, err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		fail("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		fail("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
}

// String renders the config for logging with the database URL and API
// keys masked.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Config{Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ", c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxConcurrent: %d, LockedBidStatuses: %v}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.LockedBidStatuses)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Comparison: {DefaultBaseline: %q}, ", c.Comparison.DefaultBaseline)
	fmt.Fprintf(&b, "History: {RetentionDays: %d, PurgeSchedule: %q}, ", c.History.RetentionDays, c.History.PurgeSchedule)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}}", c.Logging.Level, c.Logging.Format)
	return b.String()
}
