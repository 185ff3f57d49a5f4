package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Endpoint       string `toml:"endpoint"`
	AuthToken      string `toml:"auth_token"`
	TokenFile      string `toml:"token_file"`
	StateDir       string `toml:"state_dir"`
	Registry       string `toml:"registry"`
	RedisURL       string `toml:"redis_url"`
	Database       string `toml:"database"`
	HTTPTimeout    string `toml:"http_timeout"`
	MaxAttempts    int    `toml:"max_attempts"`
	BackoffInitial string `toml:"backoff_initial"`
	BackoffMax     string `toml:"backoff_max"`
	MaxRetryAfter  string `toml:"max_retry_after"`
	PollInterval   string `toml:"poll_interval"`
	Concurrency    int    `toml:"concurrency"`
	MetricsAddr    string `toml:"metrics_addr"`
	Once           *bool  `toml:"once"`
	LogLevel       string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.cyup/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".cyup", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("auth-token", fc.AuthToken, &cfg.AuthToken)
	s.setString("token-file", fc.TokenFile, &cfg.TokenFile)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("registry", fc.Registry, &cfg.Registry)
	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)
	s.setString("database", fc.Database, &cfg.Database)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}
	if err := s.setDuration("max-retry-after", fc.MaxRetryAfter, &cfg.MaxRetryAfter); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)
	s.setInt("concurrency", fc.Concurrency, &cfg.Concurrency)

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
