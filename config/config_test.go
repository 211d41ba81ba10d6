package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty base url",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.BaseURL = "localhost:8000" },
			wantErr: "base_url",
		},
		{
			name:    "base url with wrong scheme",
			mutate:  func(c *Config) { c.BaseURL = "ftp://example.com" },
			wantErr: "base_url",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: "timeout",
		},
		{
			name:    "unknown session backend",
			mutate:  func(c *Config) { c.SessionBackend = "redis" },
			wantErr: "session_backend",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.RequestsPerSecond = -1 },
			wantErr: "requests_per_second",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name:    "max backoff below initial",
			mutate:  func(c *Config) { c.InitialBackoff = time.Minute; c.MaxBackoff = time.Second },
			wantErr: "max_backoff",
		},
		{
			name:    "multiplier not above one",
			mutate:  func(c *Config) { c.BackoffMultiplier = 1.0 },
			wantErr: "backoff_multiplier",
		},
		{
			name:    "breaker enabled without cooldown",
			mutate:  func(c *Config) { c.BreakerThreshold = 3; c.BreakerCooldown = 0 },
			wantErr: "breaker_cooldown",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "log_level",
		},
		{
			name:   "breaker disabled ignores cooldown",
			mutate: func(c *Config) { c.BreakerThreshold = 0; c.BreakerCooldown = 0 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.SessionBackend != SessionBackendSQLite {
		t.Errorf("SessionBackend = %q", cfg.SessionBackend)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
}

func TestLoadFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "vidvault")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"base_url": "https://vault.example.com", "max_retries": 2, "log_level": "debug"}`
	if err := os.WriteFile(filepath.Join(dir, "vidvault.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://vault.example.com" {
		t.Errorf("BaseURL = %q, want value from file", cfg.BaseURL)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Values the file does not mention keep their defaults.
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default", cfg.Timeout)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "vidvault")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"base_url": "https://from-file.example.com"}`
	if err := os.WriteFile(filepath.Join(dir, "vidvault.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VIDVAULT_BASE_URL", "https://from-env.example.com")
	t.Setenv("VIDVAULT_TIMEOUT", "5s")
	t.Setenv("VIDVAULT_SESSION_BACKEND", "file")
	t.Setenv("VIDVAULT_REQUESTS_PER_SECOND", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://from-env.example.com" {
		t.Errorf("BaseURL = %q, want env to win over file", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.SessionBackend != SessionBackendFile {
		t.Errorf("SessionBackend = %q, want file", cfg.SessionBackend)
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.RequestsPerSecond)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VIDVAULT_SESSION_BACKEND", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error, want validation failure")
	}
}

func TestSessionFile(t *testing.T) {
	t.Setenv("HOME", "/home/ada")

	tests := []struct {
		name    string
		backend string
		path    string
		want    string
	}{
		{
			name:    "explicit path wins",
			backend: SessionBackendSQLite,
			path:    "/tmp/custom.db",
			want:    "/tmp/custom.db",
		},
		{
			name:    "sqlite default",
			backend: SessionBackendSQLite,
			want:    filepath.Join("/home/ada", ".config", "vidvault", "session.db"),
		},
		{
			name:    "file default",
			backend: SessionBackendFile,
			want:    filepath.Join("/home/ada", ".config", "vidvault", "session.json"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SessionBackend = tt.backend
			cfg.SessionPath = tt.path
			if got := cfg.SessionFile(); got != tt.want {
				t.Errorf("SessionFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
