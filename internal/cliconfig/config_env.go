package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (CYUP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("endpoint", os.Getenv("CYUP_ENDPOINT"), &cfg.Endpoint)
	s.setString("auth-token", os.Getenv("CYUP_AUTH_TOKEN"), &cfg.AuthToken)
	s.setString("token-file", os.Getenv("CYUP_TOKEN_FILE"), &cfg.TokenFile)
	s.setString("state-dir", os.Getenv("CYUP_STATE_DIR"), &cfg.StateDir)
	s.setString("registry", os.Getenv("CYUP_REGISTRY"), &cfg.Registry)
	s.setString("redis-url", os.Getenv("CYUP_REDIS_URL"), &cfg.RedisURL)
	s.setString("database", os.Getenv("CYUP_DATABASE"), &cfg.Database)
	s.setString("metrics-addr", os.Getenv("CYUP_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("CYUP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("CYUP_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", os.Getenv("CYUP_BACKOFF_INITIAL"), &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", os.Getenv("CYUP_BACKOFF_MAX"), &cfg.BackoffMax); err != nil {
		return err
	}
	if err := s.setDuration("max-retry-after", os.Getenv("CYUP_MAX_RETRY_AFTER"), &cfg.MaxRetryAfter); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("CYUP_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("max-attempts", os.Getenv("CYUP_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("concurrency", os.Getenv("CYUP_CONCURRENCY"), &cfg.Concurrency); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("CYUP_ONCE"), &cfg.Once)

	return nil
}
