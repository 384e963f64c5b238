// Package config holds LabFlow server configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ServerConfig holds configuration for the LabFlow server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json

	Backend string `yaml:"backend"` // "sqlite" or "memory"
	DBPath  string `yaml:"db_path"` // SQLite database path (default ~/.labflow/labflow.db, ":memory:" for testing)

	// Demo seeds the store with sample projects, workflows, and assays.
	Demo bool `yaml:"demo"`

	// Admins are emails granted the admin role on signup or login.
	Admins []string `yaml:"admins"`

	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`

	// FormulaTimeout bounds a single formula evaluation.
	FormulaTimeout time.Duration `yaml:"formula_timeout"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		LogLevel:       "info",
		LogFormat:      "text",
		Backend:        BackendSQLite,
		SessionTTL:     24 * time.Hour,
		FormulaTimeout: 100 * time.Millisecond,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports configuration values the server cannot run with.
func (c *ServerConfig) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendMemory)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if c.FormulaTimeout <= 0 {
		return fmt.Errorf("formula_timeout must be positive")
	}
	return nil
}

// MergeAdminsFromEnv appends comma-separated emails from the named
// environment variable to the admin list.
func (c *ServerConfig) MergeAdminsFromEnv(envVar string) {
	for _, email := range strings.Split(os.Getenv(envVar), ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			c.Admins = append(c.Admins, email)
		}
	}
}

// IsAdmin reports whether email is configured as an administrator.
func (c *ServerConfig) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.Admins {
		if strings.ToLower(a) == email {
			return true
		}
	}
	return false
}
