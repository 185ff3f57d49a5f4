package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Endpoint:     "https://collector.example.org/api/v4",
				TokenFile:    "/run/cyup/token",
				Registry:     "redis",
				RedisURL:     "redis://localhost:6379/1",
				PollInterval: "5m",
				MaxAttempts:  8,
				Concurrency:  4,
				Once:         &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Endpoint:     "https://collector.example.org/api/v4",
				TokenFile:    "/run/cyup/token",
				Registry:     "redis",
				RedisURL:     "redis://localhost:6379/1",
				PollInterval: 5 * time.Minute,
				MaxAttempts:  8,
				Concurrency:  4,
				Once:         true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Endpoint:    "https://file.example.org",
				MaxAttempts: 9,
			},
			changed: map[string]bool{"endpoint": true, "max-attempts": true},
			initial: Config{Endpoint: "https://flag.example.org", MaxAttempts: 3},
			expected: Config{
				Endpoint:    "https://flag.example.org",
				MaxAttempts: 3,
			},
		},
		{
			name:       "zero values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{Concurrency: 2, Registry: "sqlite"},
			expected:   Config{Concurrency: 2, Registry: "sqlite"},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{BackoffMax: "forever"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
endpoint = "https://collector.example.org/api/v4"
token_file = "/run/cyup/token"
registry = "sqlite"
http_timeout = "10s"
max_attempts = 7
backoff_initial = "1s"
backoff_max = "1m"
once = true
log_level = "debug"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.Endpoint != "https://collector.example.org/api/v4" {
		t.Errorf("Endpoint = %v", fc.Endpoint)
	}
	if fc.MaxAttempts != 7 || fc.HTTPTimeout != "10s" || fc.LogLevel != "debug" {
		t.Errorf("fc = %+v", fc)
	}
	if fc.Once == nil || !*fc.Once {
		t.Errorf("Once = %v, want true", fc.Once)
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.BackoffMax != time.Minute || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("durations = %v, %v", cfg.BackoffMax, cfg.HTTPTimeout)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("endpoint = [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p != "" && !strings.HasSuffix(p, filepath.Join(".cyup", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %v", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists() = true for missing file")
	}
	if !FileExists(dir) {
		t.Error("FileExists() = false for existing dir")
	}
}
