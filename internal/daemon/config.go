// Package daemon holds the long-running process configuration: the TOML
// config file under the trailhead home directory and its mapping onto the
// engine and harmony settings.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/trailhead-app/trailhead/internal/app/engine"
	"github.com/trailhead-app/trailhead/internal/app/harmony"
)

// Config is the daemon configuration, loaded from config.toml in the
// trailhead home directory. Durations are TOML strings ("500ms", "72h").
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	XP      XPConfig      `toml:"xp"`
	Harmony HarmonyConfig `toml:"harmony"`
}

// APIConfig configures the local HTTP server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port bind address.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// StorageConfig selects the ledger backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `toml:"backend"`
	// Path overrides the database file location. Empty means
	// <home>/trailhead.db.
	Path string `toml:"path"`
}

// XPConfig holds the economy knobs exposed to the config file.
type XPConfig struct {
	EnforceLimits      bool   `toml:"enforce_limits"`
	DailyCap           int64  `toml:"daily_cap"`
	SingleGrantCeiling int64  `toml:"single_grant_ceiling"`
	MinGrantInterval   string `toml:"min_grant_interval"`

	BatchingEnabled bool   `toml:"batching_enabled"`
	BatchWindow     string `toml:"batch_window"`

	OptimisticEnabled bool `toml:"optimistic_enabled"`
}

// HarmonyConfig holds the multiplier knobs exposed to the config file.
type HarmonyConfig struct {
	StreakThreshold int     `toml:"streak_threshold"`
	Factor          float64 `toml:"factor"`
	Duration        string  `toml:"duration"`
	Cooldown        string  `toml:"cooldown"`
}

// DefaultConfig returns the configuration used when no config.toml exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 4317,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		XP: XPConfig{
			EnforceLimits:      true,
			DailyCap:           1000,
			SingleGrantCeiling: 500,
			MinGrantInterval:   "2s",
			BatchingEnabled:    true,
			BatchWindow:        "500ms",
			OptimisticEnabled:  true,
		},
		Harmony: HarmonyConfig{
			StreakThreshold: 7,
			Factor:          1.5,
			Duration:        "24h",
			Cooldown:        "72h",
		},
	}
}

// Home returns the trailhead home directory: $TRAILHEAD_HOME when set,
// otherwise ~/.trailhead.
func Home() string {
	if h := os.Getenv("TRAILHEAD_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".trailhead"
	}
	return filepath.Join(home, ".trailhead")
}

// EnsureHome creates the home directory if needed and returns it.
func EnsureHome() (string, error) {
	home := Home()
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("create home dir: %w", err)
	}
	return home, nil
}

// ConfigPath returns the config file location inside the home directory.
func ConfigPath() string { return filepath.Join(Home(), "config.toml") }

// DatabasePath returns the ledger file location for a config.
func (c Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(Home(), "trailhead.db")
}

// Load reads config.toml, falling back to defaults when the file does not
// exist. Values present in the file override the default; absent sections
// keep their defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// EngineConfig maps the file config onto the engine's settings, keeping
// engine defaults for knobs the file does not expose.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.EnforceLimits = c.XP.EnforceLimits
	ec.DailyCap = c.XP.DailyCap
	ec.SingleGrantCeiling = c.XP.SingleGrantCeiling
	ec.MinGrantInterval = parseDuration(c.XP.MinGrantInterval, ec.MinGrantInterval)
	ec.BatchingEnabled = c.XP.BatchingEnabled
	ec.BatchWindow = parseDuration(c.XP.BatchWindow, ec.BatchWindow)
	ec.OptimisticEnabled = c.XP.OptimisticEnabled
	return ec
}

// HarmonySettings maps the file config onto the harmony settings.
func (c Config) HarmonySettings() harmony.Config {
	hc := harmony.DefaultConfig()
	hc.StreakThreshold = c.Harmony.StreakThreshold
	hc.HarmonyFactor = c.Harmony.Factor
	hc.HarmonyDuration = parseDuration(c.Harmony.Duration, hc.HarmonyDuration)
	hc.Cooldown = parseDuration(c.Harmony.Cooldown, hc.Cooldown)
	return hc
}

// parseDuration parses a TOML duration string, keeping the fallback on
// empty or malformed input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
