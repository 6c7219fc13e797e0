package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tracker.StopGrace != "7m" {
		t.Errorf("StopGrace = %q, want 7m", cfg.Tracker.StopGrace)
	}
	if got := ParseDuration(cfg.Tracker.StopGrace, 0); got.Milliseconds() != 420000 {
		t.Errorf("stop grace = %dms, want 420000", got.Milliseconds())
	}
	if cfg.Tracker.PollInterval != "30s" {
		t.Errorf("PollInterval = %q, want 30s", cfg.Tracker.PollInterval)
	}
	if cfg.Tracker.IdleThreshold != "30s" || cfg.Tracker.IdleBuffer != "1s" {
		t.Errorf("idle = %q + %q, want 30s + 1s", cfg.Tracker.IdleThreshold, cfg.Tracker.IdleBuffer)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: https://tracker.example.com/api
tracker:
  email: dev@example.com
  poll_interval: 45s
storage:
  type: redis
  redis:
    host: 10.0.0.5
`)
	t.Setenv("PUNCHCLOCK_TRACKER_EMAIL", "override@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.BaseURL != "https://tracker.example.com/api" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Tracker.Email != "override@example.com" {
		t.Errorf("Email = %q, want env override", cfg.Tracker.Email)
	}
	if cfg.Tracker.PollInterval != "45s" {
		t.Errorf("PollInterval = %q", cfg.Tracker.PollInterval)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "10.0.0.5" || cfg.Storage.Redis.Port != 6379 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad base url", "server:\n  base_url: not-a-url\n"},
		{"bad duration", "tracker:\n  poll_interval: soon\n"},
		{"negative duration", "tracker:\n  stop_grace: -1m\n"},
		{"bad storage", "storage:\n  type: sqlite\n"},
		{"empty bolt path", "storage:\n  type: bolt\n  bolt:\n    path: \"\"\n"},
		{"bad attempts", "tracker:\n  break_max_attempts: 0\n"},
		{"bad metrics port", "metrics:\n  enabled: true\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_BoltDefaultPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  type: bolt\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Bolt.Path != DefaultStatePath() {
		t.Errorf("Bolt.Path = %q, want %q", cfg.Storage.Bolt.Path, DefaultStatePath())
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("90s", time.Second); got != 90*time.Second {
		t.Errorf("ParseDuration(90s) = %v", got)
	}
	if got := ParseDuration("", time.Second); got != time.Second {
		t.Errorf("ParseDuration(\"\") = %v, want fallback", got)
	}
}
