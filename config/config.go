// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Session storage backends.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendFile   = "file"
)

// Config holds all application configuration for talking to a VidVault
// server and storing the local session.
type Config struct {
	// BaseURL is the root of the VidVault API server
	BaseURL string `json:"base_url"`
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration `json:"timeout"`

	// SessionBackend selects where the session is persisted: "sqlite" or "file"
	SessionBackend string `json:"session_backend"`
	// SessionPath overrides the session file location (default: under ~/.config/vidvault)
	SessionPath string `json:"session_path"`

	// RequestsPerSecond paces outgoing API calls (0 = unpaced)
	RequestsPerSecond float64 `json:"requests_per_second"`
	// MaxRetries is the maximum number of retries for transient API failures
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries
	InitialBackoff time.Duration `json:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries
	MaxBackoff time.Duration `json:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1)
	BackoffMultiplier float64 `json:"backoff_multiplier"`

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker (0 = breaker disabled)
	BreakerThreshold int `json:"breaker_threshold"`
	// BreakerCooldown is how long the circuit stays open before probing
	BreakerCooldown time.Duration `json:"breaker_cooldown"`

	// YouTubeAPIKey enables playlist previews via the YouTube Data API
	// (empty = previews disabled)
	YouTubeAPIKey string `json:"youtube_api_key"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://localhost:8000",
		Timeout:           30 * time.Second,
		SessionBackend:    SessionBackendSQLite,
		RequestsPerSecond: 0,
		MaxRetries:        5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		BreakerThreshold:  5,
		BreakerCooldown:   30 * time.Second,
		LogLevel:          "info",
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.loadFromEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from vidvault.json in current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"vidvault.json",
		filepath.Join(os.Getenv("HOME"), ".config", "vidvault", "vidvault.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("VIDVAULT_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("VIDVAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
	if v := os.Getenv("VIDVAULT_SESSION_BACKEND"); v != "" {
		c.SessionBackend = v
	}
	if v := os.Getenv("VIDVAULT_SESSION_PATH"); v != "" {
		c.SessionPath = v
	}
	if v := os.Getenv("VIDVAULT_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("VIDVAULT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("VIDVAULT_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitialBackoff = d
		}
	}
	if v := os.Getenv("VIDVAULT_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxBackoff = d
		}
	}
	if v := os.Getenv("VIDVAULT_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BreakerThreshold = n
		}
	}
	if v := os.Getenv("VIDVAULT_BREAKER_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BreakerCooldown = d
		}
	}
	if v := os.Getenv("VIDVAULT_YOUTUBE_API_KEY"); v != "" {
		c.YouTubeAPIKey = v
	}
	if v := os.Getenv("VIDVAULT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// SessionFile returns the effective session path: SessionPath when set,
// otherwise a backend-appropriate file under ~/.config/vidvault.
func (c *Config) SessionFile() string {
	if c.SessionPath != "" {
		return c.SessionPath
	}
	dir := filepath.Join(os.Getenv("HOME"), ".config", "vidvault")
	if c.SessionBackend == SessionBackendFile {
		return filepath.Join(dir, "session.json")
	}
	return filepath.Join(dir, "session.db")
}

// Level maps LogLevel to a slog level. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.SessionBackend != SessionBackendSQLite && c.SessionBackend != SessionBackendFile {
		return fmt.Errorf("session_backend must be %q or %q, got %q", SessionBackendSQLite, SessionBackendFile, c.SessionBackend)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.BreakerThreshold < 0 {
		return fmt.Errorf("breaker_threshold must be non-negative")
	}
	if c.BreakerThreshold > 0 && c.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker_cooldown must be positive when the breaker is enabled")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}
