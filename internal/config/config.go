package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr      = ":8080"
	defaultLockTTL       = 10 * time.Second
	defaultSweepInterval = time.Minute
)

// Config holds infrastructure settings. Station and calendar settings live in
// the TOML feature config.
type Config struct {
	DBPath        string
	HTTPAddr      string
	RedisURL      string // empty selects the in-process locker
	LockTTL       time.Duration
	SweepInterval time.Duration
	CORSOrigins   []string
}

// Load loads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from an optional .env file and environment variables.
func LoadWithFile(envFile string) (*Config, error) {
	// Attempt to load .env file if provided, but don't fail if it doesn't exist.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	lockTTL, err := parseDuration("LOCK_TTL", defaultLockTTL)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDuration("SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:        os.Getenv("DB_PATH"),
		HTTPAddr:      os.Getenv("HTTP_ADDR"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LockTTL:       lockTTL,
		SweepInterval: sweepInterval,
		CORSOrigins:   parseList(os.Getenv("CORS_ORIGINS")),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required fields are set.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}

// parseDuration reads a Go duration from key, using def when unset.
func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
