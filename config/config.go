// ABOUTME: Application configuration loaded from YAML at XDG paths
// ABOUTME: Supplies defaults, environment overrides, and first-run config creation
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const AppName = "subcal"

// Config is the top-level application configuration.
type Config struct {
	// ProductName prefixes the dedicated calendar name, e.g. "SubTracker Subscriptions - 2025".
	ProductName string `yaml:"product_name"`

	// DatabasePath is the SQLite file; empty means the XDG data default.
	DatabasePath string `yaml:"database_path"`

	// Listen is the HTTP API listen address.
	Listen string `yaml:"listen"`

	// Timezone is the IANA zone for calendars and all-day events. Empty uses the host zone.
	Timezone string `yaml:"timezone"`

	// SyncCron is the robfig/cron spec used by the reconcile daemon.
	SyncCron string `yaml:"sync_cron"`

	// CalendarEndpoint overrides the Google Calendar API base URL.
	CalendarEndpoint string `yaml:"calendar_endpoint,omitempty"`

	// MinConfidence is the extractor confidence below which records are ignored.
	MinConfidence float64 `yaml:"min_confidence"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// VerifyStorePath, if set, backs verification codes with badger at this directory.
	VerifyStorePath string `yaml:"verify_store_path,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		ProductName:   "SubTracker",
		Listen:        "127.0.0.1:8080",
		SyncCron:      "0 */6 * * *",
		MinConfidence: 0.7,
		LogLevel:      "info",
	}
}

// DefaultPath returns the XDG-compliant config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultDatabasePath returns the XDG-compliant database location.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, AppName, "subcal.db")
}

// Load reads the config at path (DefaultPath when empty). A missing file is
// created with defaults. Environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath()
	}

	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides:
// - SUBCAL_PRODUCT_NAME, SUBCAL_LISTEN, SUBCAL_TIMEZONE, SUBCAL_SYNC_CRON
// - SUBCAL_CALENDAR_ENDPOINT, SUBCAL_LOG_LEVEL, SUBCAL_DB_PATH, SUBCAL_VERIFY_STORE.
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"SUBCAL_PRODUCT_NAME":      &cfg.ProductName,
		"SUBCAL_LISTEN":            &cfg.Listen,
		"SUBCAL_TIMEZONE":          &cfg.Timezone,
		"SUBCAL_SYNC_CRON":         &cfg.SyncCron,
		"SUBCAL_CALENDAR_ENDPOINT": &cfg.CalendarEndpoint,
		"SUBCAL_LOG_LEVEL":         &cfg.LogLevel,
		"SUBCAL_DB_PATH":           &cfg.DatabasePath,
		"SUBCAL_VERIFY_STORE":      &cfg.VerifyStorePath,
	}

	for key, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*field = v
		}
	}
}
