package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Data.Dir != "./data" || cfg.Data.ItemSheetDir != "./data" {
		t.Errorf("unexpected data dirs: %+v", cfg.Data)
	}
	if cfg.Thresholds != (ThresholdsConfig{Red: 200, Yellow: 200, Green: 200, Current: 3.0}) {
		t.Errorf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if !cfg.Acquisition.IsEnabled() || !cfg.Ledger.IsEnabled() {
		t.Error("acquisition and ledger should default to enabled")
	}
	if cfg.Latest.Window.Duration() != 5*time.Minute {
		t.Errorf("latest window = %v, want 5m", cfg.Latest.Window.Duration())
	}
	if cfg.Ledger.RetentionPeriod.Duration() != 30*24*time.Hour {
		t.Errorf("retention = %v", cfg.Ledger.RetentionPeriod.Duration())
	}

	start, end, err := cfg.Shift.Offsets()
	if err != nil {
		t.Fatalf("Offsets failed: %v", err)
	}
	if start != 8*time.Hour || end != 17*time.Hour {
		t.Errorf("shift = %v-%v, want 8h-17h", start, end)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
data:
  dir: /var/lib/lampd
  timezone: UTC
thresholds:
  current: 1.5
acquisition:
  enabled: false
shift:
  start: "07:30"
  end: "16:15"
latest:
  window: 2m
mqtt:
  enabled: true
  broker: tcp://localhost:1883
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Acquisition.IsEnabled() {
		t.Error("acquisition should be disabled")
	}
	if cfg.Thresholds.Current != 1.5 || cfg.Thresholds.Red != 200 {
		t.Errorf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Data.ItemSheetDir != "/var/lib/lampd" {
		t.Errorf("item sheet dir should follow data dir, got %q", cfg.Data.ItemSheetDir)
	}
	loc, err := cfg.Data.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location = %v, %v", loc, err)
	}
	start, end, _ := cfg.Shift.Offsets()
	if start != 7*time.Hour+30*time.Minute || end != 16*time.Hour+15*time.Minute {
		t.Errorf("shift = %v-%v", start, end)
	}
	if cfg.Latest.Window.Duration() != 2*time.Minute {
		t.Errorf("latest window = %v", cfg.Latest.Window.Duration())
	}
	if cfg.MQTT.Topic != "lampd/state" {
		t.Errorf("mqtt topic = %q", cfg.MQTT.Topic)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"timezone":     "data:\n  timezone: Mars/Olympus\n",
		"shift":        "shift:\n  start: \"18:00\"\n  end: \"08:00\"\n",
		"shift clock":  "shift:\n  start: \"8am\"\n",
		"duration":     "latest:\n  window: soon\n",
		"cleanup":      "ledger:\n  cleanup_interval: -1h\n",
		"retention":    "ledger:\n  retention_period: -24h\n",
		"window":       "latest:\n  window: -5m\n",
		"mqtt timeout": "mqtt:\n  timeout: -1s\n",
		"shutdown":     "shutdown_timeout: -5s\n",
		"threshold":    "thresholds:\n  red: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseKeepsExplicitZeroThreshold(t *testing.T) {
	cfg, err := Parse([]byte("thresholds:\n  current: 0\n  green: 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := ThresholdsConfig{Red: 200, Yellow: 200, Green: 0, Current: 0}
	if cfg.Thresholds != want {
		t.Errorf("thresholds = %+v, want %+v", cfg.Thresholds, want)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("LAMPD_TEST_DIR", "/srv/logs")

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "data:\n  dir: ${LAMPD_TEST_DIR}\ndatabase:\n  path: ${LAMPD_TEST_UNSET:/tmp/x.sqlite}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Data.Dir != "/srv/logs" {
		t.Errorf("data dir = %q", cfg.Data.Dir)
	}
	if cfg.Database.Path != "/tmp/x.sqlite" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
}
