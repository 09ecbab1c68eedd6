// Package config loads and saves the ravbot TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all ravbot configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Detection  DetectionConfig  `toml:"detection"`
	Registry   RegistryConfig   `toml:"registry"`
	Lifecycle  LifecycleConfig  `toml:"lifecycle"`
	Provider   ProviderConfig   `toml:"provider"`
	Server     ServerConfig     `toml:"server"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DBPath   string `toml:"db_path,omitempty"`
	LogLevel string `toml:"log_level"`
}

// DetectionConfig tunes the detection run.
type DetectionConfig struct {
	WindowDays           int `toml:"window_days"`
	FetchTimeoutSec      int `toml:"fetch_timeout_sec"`
	MaxConcurrentFetches int `toml:"max_concurrent_fetches"`
	WeeklyMinDays        int `toml:"weekly_min_days"`
	WeeklyMaxDays        int `toml:"weekly_max_days"`
	MonthlyMinDays       int `toml:"monthly_min_days"`
	MonthlyMaxDays       int `toml:"monthly_max_days"`
}

// RegistryConfig holds the promotion policy for detected series.
type RegistryConfig struct {
	PromotionMinCharges int  `toml:"promotion_min_charges"`
	ResurrectCancelled  bool `toml:"resurrect_cancelled"`
}

// LifecycleConfig holds cancellation lifecycle settings.
type LifecycleConfig struct {
	StalePendingAfterSec int `toml:"stale_pending_after_sec"`
}

// ProviderConfig holds transaction provider credentials.
type ProviderConfig struct {
	BaseURL  string `toml:"base_url,omitempty"`
	ClientID string `toml:"client_id,omitempty"`
	Secret   string `toml:"secret,omitempty"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Detection: DetectionConfig{
			WindowDays:           90,
			FetchTimeoutSec:      10,
			MaxConcurrentFetches: 4,
			WeeklyMinDays:        5,
			WeeklyMaxDays:        10,
			MonthlyMinDays:       20,
			MonthlyMaxDays:       40,
		},
		Registry: RegistryConfig{
			PromotionMinCharges: 3,
		},
		Lifecycle: LifecycleConfig{
			StalePendingAfterSec: 300,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// FetchTimeout returns the per-account fetch timeout.
func (d DetectionConfig) FetchTimeout() time.Duration {
	return time.Duration(d.FetchTimeoutSec) * time.Second
}

// StalePendingAfter returns the age after which a cancel_pending row is swept.
func (l LifecycleConfig) StalePendingAfter() time.Duration {
	return time.Duration(l.StalePendingAfterSec) * time.Second
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ravbot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ravbot")
}

// ConfigPath returns the default path of the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultDBPath returns the database location used when db_path is unset.
func DefaultDBPath() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ravbot", "ravbot.db")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "ravbot", "ravbot.db")
}

// Load reads the config file at path, returning defaults if it doesn't exist.
// An empty path means ConfigPath().
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RAVBOT_PROVIDER_CLIENT_ID"); v != "" {
		cfg.Provider.ClientID = v
	}
	if v := os.Getenv("RAVBOT_PROVIDER_SECRET"); v != "" {
		cfg.Provider.Secret = v
	}
}

// Validate rejects settings the detector and pipeline cannot run with.
func (c Config) Validate() error {
	d := c.Detection
	switch {
	case d.WindowDays <= 0:
		return fmt.Errorf("detection.window_days must be positive, got %d", d.WindowDays)
	case d.MaxConcurrentFetches <= 0:
		return fmt.Errorf("detection.max_concurrent_fetches must be positive, got %d", d.MaxConcurrentFetches)
	case d.FetchTimeoutSec <= 0:
		return fmt.Errorf("detection.fetch_timeout_sec must be positive, got %d", d.FetchTimeoutSec)
	case d.WeeklyMinDays > d.WeeklyMaxDays:
		return fmt.Errorf("detection weekly bounds inverted: %d > %d", d.WeeklyMinDays, d.WeeklyMaxDays)
	case d.MonthlyMinDays > d.MonthlyMaxDays:
		return fmt.Errorf("detection monthly bounds inverted: %d > %d", d.MonthlyMinDays, d.MonthlyMaxDays)
	case c.Registry.PromotionMinCharges < 2:
		return fmt.Errorf("registry.promotion_min_charges must be at least 2, got %d", c.Registry.PromotionMinCharges)
	}
	return nil
}

// Save writes the config to path. An empty path means ConfigPath().
func Save(path string, cfg Config) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // user-supplied config path
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	return encodeAndClose(f, cfg)
}

// encodeAndClose writes cfg to w and closes it. A failed close is reported
// when encoding succeeded, since buffered data may not have reached disk.
func encodeAndClose(w io.WriteCloser, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing config file: %w", err)
	}
	return nil
}

// Exists reports whether a config file exists at path. An empty path means ConfigPath().
func Exists(path string) bool {
	if path == "" {
		path = ConfigPath()
	}
	_, err := os.Stat(path)
	return err == nil
}
