package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 4317 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 4317)
	}
	if cfg.API.Addr() != "127.0.0.1:4317" {
		t.Errorf("Addr = %q, want 127.0.0.1:4317", cfg.API.Addr())
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if !cfg.XP.EnforceLimits {
		t.Error("XP.EnforceLimits should be true by default")
	}
	if cfg.XP.DailyCap != 1000 {
		t.Errorf("XP.DailyCap = %d, want 1000", cfg.XP.DailyCap)
	}
	if cfg.XP.MinGrantInterval != "2s" {
		t.Errorf("XP.MinGrantInterval = %q, want 2s", cfg.XP.MinGrantInterval)
	}
	if cfg.Harmony.StreakThreshold != 7 {
		t.Errorf("Harmony.StreakThreshold = %d, want 7", cfg.Harmony.StreakThreshold)
	}
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 4317 {
		t.Errorf("API.Port = %d, want default 4317", cfg.API.Port)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
port = 5000

[storage]
backend = "memory"

[xp]
enforce_limits = false
daily_cap = 2000
batch_window = "250ms"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Port != 5000 {
		t.Errorf("API.Port = %d, want 5000", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default kept", cfg.API.Host)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.XP.EnforceLimits {
		t.Error("XP.EnforceLimits should be overridden to false")
	}
	if cfg.XP.DailyCap != 2000 {
		t.Errorf("XP.DailyCap = %d, want 2000", cfg.XP.DailyCap)
	}
	// Untouched section keeps its defaults.
	if cfg.Harmony.Cooldown != "72h" {
		t.Errorf("Harmony.Cooldown = %q, want default 72h", cfg.Harmony.Cooldown)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[api\nport ="), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("malformed config should error")
	}
}

func TestEngineConfigMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.XP.DailyCap = 1500
	cfg.XP.MinGrantInterval = "3s"
	cfg.XP.BatchWindow = "not a duration"

	ec := cfg.EngineConfig()
	if ec.DailyCap != 1500 {
		t.Errorf("DailyCap = %d, want 1500", ec.DailyCap)
	}
	if ec.MinGrantInterval != 3*time.Second {
		t.Errorf("MinGrantInterval = %v, want 3s", ec.MinGrantInterval)
	}
	// Malformed duration keeps the engine default.
	if ec.BatchWindow != 500*time.Millisecond {
		t.Errorf("BatchWindow = %v, want fallback 500ms", ec.BatchWindow)
	}
}

func TestHarmonySettingsMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Harmony.StreakThreshold = 10
	cfg.Harmony.Duration = "12h"

	hc := cfg.HarmonySettings()
	if hc.StreakThreshold != 10 {
		t.Errorf("StreakThreshold = %d, want 10", hc.StreakThreshold)
	}
	if hc.HarmonyDuration != 12*time.Hour {
		t.Errorf("HarmonyDuration = %v, want 12h", hc.HarmonyDuration)
	}
	if hc.Cooldown != 72*time.Hour {
		t.Errorf("Cooldown = %v, want default 72h", hc.Cooldown)
	}
}

func TestHome_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRAILHEAD_HOME", dir)

	if Home() != dir {
		t.Errorf("Home = %q, want %q", Home(), dir)
	}
	if ConfigPath() != filepath.Join(dir, "config.toml") {
		t.Errorf("ConfigPath = %q, want under %q", ConfigPath(), dir)
	}

	cfg := DefaultConfig()
	if cfg.DatabasePath() != filepath.Join(dir, "trailhead.db") {
		t.Errorf("DatabasePath = %q, want under %q", cfg.DatabasePath(), dir)
	}
	cfg.Storage.Path = "/tmp/other.db"
	if cfg.DatabasePath() != "/tmp/other.db" {
		t.Errorf("DatabasePath = %q, want explicit override", cfg.DatabasePath())
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"72h", 72 * time.Hour},
		// Empty and malformed inputs keep the fallback.
		{"", time.Second},
		{"nonsense", time.Second},
	}

	for _, tt := range tests {
		if got := parseDuration(tt.input, time.Second); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
