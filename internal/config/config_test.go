package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokentimer.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOKENTIMER_STORAGE_PATH", filepath.Join(dir, "state", "tokentimer.bolt"))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Storage.Type != "bolt" {
		t.Errorf("expected bolt storage, got %s", cfg.Storage.Type)
	}
	if cfg.Engine.TickInterval != "1s" || cfg.Engine.GrantInterval != "1m" {
		t.Errorf("unexpected engine intervals %+v", cfg.Engine)
	}
	if _, err := os.Stat(filepath.Join(dir, "state")); err != nil {
		t.Errorf("expected storage directory to be created: %v", err)
	}

	s, err := cfg.Defaults.Settings()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if s.GracePeriodMinutes != 2 || s.MaxWalletTokens != nil || s.WeekStart != time.Sunday {
		t.Errorf("unexpected default settings %+v", s)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
storage:
  type: sqlite
  sqlite:
    path: `+filepath.Join(dir, "tt.db")+`
engine:
  timezone: UTC
defaults:
  max_wallet_tokens: 8
  daily_goal_minutes: 90
  week_start: mon
  time_display: minutesOnly
`)
	t.Setenv("TOKENTIMER_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Storage.Type != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Storage.Type)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env override, got %s", cfg.Logging.Level)
	}
	loc, err := cfg.Engine.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("expected UTC, got %v (%v)", loc, err)
	}

	s, err := cfg.Defaults.Settings()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if s.MaxWalletTokens == nil || *s.MaxWalletTokens != 8 {
		t.Errorf("expected cap 8, got %v", s.MaxWalletTokens)
	}
	if s.DailyGoalMinutes == nil || *s.DailyGoalMinutes != 90 {
		t.Errorf("expected daily goal 90, got %v", s.DailyGoalMinutes)
	}
	if s.WeekStart != time.Monday {
		t.Errorf("expected Monday week start, got %v", s.WeekStart)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"storage type", "storage:\n  type: etcd\n", "invalid storage type"},
		{"interval", "storage:\n  path: " + filepath.Join(dir, "a.bolt") + "\nengine:\n  tick_interval: soon\n", "engine.tick_interval"},
		{"timezone", "storage:\n  path: " + filepath.Join(dir, "b.bolt") + "\nengine:\n  timezone: Mars/Olympus\n", "engine.timezone"},
		{"grace", "storage:\n  path: " + filepath.Join(dir, "c.bolt") + "\ndefaults:\n  grace_period_minutes: -1\n", "grace period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{"Sunday": time.Sunday, "sat": time.Saturday, " Monday ": time.Monday} {
		got, err := ParseWeekday(in)
		if err != nil || got != want {
			t.Errorf("ParseWeekday(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseWeekday("funday"); err == nil {
		t.Error("expected error")
	}
}

func TestDefaultAndKeys(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Type != "bolt" || cfg.Engine.RolloverTime != "00:00" {
		t.Errorf("unexpected default config %+v", cfg)
	}

	keys := Keys()
	for _, k := range []string{"storage.redis.password", "engine.tick_interval", "defaults.week_start"} {
		if !keys[k] {
			t.Errorf("expected key %s to be recognised", k)
		}
	}
	if keys["server.dns_port"] {
		t.Error("unexpected key server.dns_port")
	}
}
