package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := New("/tmp/vault")
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	if cfg.DBPath != filepath.Join("/tmp/vault", ".studypomo", "studypomo.db") {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.Timer.TickInterval != time.Second || cfg.Timer.AutoStartDelay != 3*time.Second {
		t.Fatalf("unexpected timer defaults %+v", cfg.Timer)
	}
	if cfg.Pomodoro.FocusDuration != 25 || cfg.Pomodoro.ShortBreakDuration != 5 || cfg.Pomodoro.LongBreakDuration != 20 {
		t.Fatalf("unexpected pomodoro defaults %+v", cfg.Pomodoro)
	}
	if cfg.Pomodoro.AutoStartFocus != nil || cfg.Pomodoro.AutoStartBreak != nil {
		t.Fatalf("per-direction auto start must default to inherit")
	}
	if cfg.Persistence.Backend != "file" {
		t.Fatalf("expected file persistence default, got %s", cfg.Persistence.Backend)
	}
}

func TestNewRequiresVault(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty vault path")
	}
}

func TestLoadReadsVaultConfigFile(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	dir := filepath.Join(vault, ".studypomo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	raw := "pomodoro:\n  focus_duration: 50\n  auto_start_break: true\ntimer:\n  auto_start_delay: 5s\npersistence:\n  backend: memory\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(vault, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Pomodoro.FocusDuration != 50 {
		t.Fatalf("expected focus 50, got %d", cfg.Pomodoro.FocusDuration)
	}
	if cfg.Pomodoro.AutoStartBreak == nil || !*cfg.Pomodoro.AutoStartBreak {
		t.Fatalf("expected auto_start_break=true")
	}
	if cfg.Pomodoro.AutoStartFocus != nil {
		t.Fatalf("auto_start_focus should stay unset")
	}
	if cfg.Timer.AutoStartDelay != 5*time.Second {
		t.Fatalf("expected 5s delay, got %s", cfg.Timer.AutoStartDelay)
	}
	if cfg.Persistence.Backend != "memory" {
		t.Fatalf("expected memory backend, got %s", cfg.Persistence.Backend)
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected info level, got %s", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	path := filepath.Join(vault, "custom.yaml")
	if err := os.WriteFile(path, []byte("persistence:\n  backend: etcd\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(vault, path); err == nil {
		t.Fatalf("expected unknown backend to fail validation")
	}
	if _, err := Load(vault, filepath.Join(vault, "missing.yaml")); err == nil {
		t.Fatalf("explicit missing config file must fail")
	}
}
