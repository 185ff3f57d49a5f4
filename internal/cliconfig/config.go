package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Registry kinds.
const (
	RegistryMemory = "memory"
	RegistrySQLite = "sqlite"
	RegistryRedis  = "redis"
)

// DefaultEndpoint is the collector API used when none is configured.
const DefaultEndpoint = "https://api.cyface.de/api/v4"

// Config holds CLI configuration for cyup.
type Config struct {
	Endpoint  string
	AuthToken string
	TokenFile string

	StateDir string
	Registry string
	RedisURL string
	Database string

	HTTPTimeout    time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	MaxRetryAfter  time.Duration

	PollInterval time.Duration
	Concurrency  int
	MetricsAddr  string
	Once         bool
	LogLevel     string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Registry:       RegistrySQLite,
		HTTPTimeout:    30 * time.Second,
		MaxAttempts:    5,
		BackoffInitial: 500 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		MaxRetryAfter:  5 * time.Minute,
		PollInterval:   time.Minute,
		Concurrency:    2,
		LogLevel:       "info",
		StateDir:       "", // Derived from the home directory during Validate
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an absolute http(s) URL", c.Endpoint)
	}

	// Ensure no trailing slash
	if len(c.Endpoint) > 0 && c.Endpoint[len(c.Endpoint)-1] == '/' {
		c.Endpoint = c.Endpoint[:len(c.Endpoint)-1]
	}

	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
		if c.StateDir == "" {
			return fmt.Errorf("state-dir is required (home directory unknown)")
		}
	}

	switch c.Registry {
	case RegistryMemory, RegistrySQLite:
	case RegistryRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis-url is required for the redis registry")
		}
	default:
		return fmt.Errorf("unknown registry %q (want memory, sqlite or redis)", c.Registry)
	}

	if c.Database == "" {
		c.Database = filepath.Join(c.StateDir, "cyup.db")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("backoff must satisfy 0 < initial <= max")
	}
	if c.MaxRetryAfter <= 0 {
		return fmt.Errorf("max retry-after must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	return nil
}

// Redacted returns a copy safe for logging.
func (c Config) Redacted() Config {
	if c.AuthToken != "" {
		c.AuthToken = "*****"
	}
	if u, err := url.Parse(c.RedisURL); err == nil && u.User != nil {
		u.User = url.User(u.User.Username())
		c.RedisURL = u.String()
	}
	return c
}

// DefaultStateDir returns ~/.cyup if the user home directory is accessible.
func DefaultStateDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".cyup")
	}
	return ""
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
