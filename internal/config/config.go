package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Data            DataConfig        `yaml:"data"`
	Thresholds      ThresholdsConfig  `yaml:"thresholds"`
	Acquisition     AcquisitionConfig `yaml:"acquisition"`
	Shift           ShiftConfig       `yaml:"shift"`
	Latest          LatestConfig      `yaml:"latest"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Ingest          IngestConfig      `yaml:"ingest"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// DataConfig contains the locations of the daily logs and item sheets
type DataConfig struct {
	Dir             string `yaml:"dir"`
	ItemSheetDir    string `yaml:"item_sheet_dir"`
	ItemSheetPrefix string `yaml:"item_sheet_prefix"`
	Timezone        string `yaml:"timezone"`
}

// Location loads the configured timezone
func (c *DataConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ThresholdsConfig contains the per-channel "on" thresholds
type ThresholdsConfig struct {
	Red     float64 `yaml:"red"`
	Yellow  float64 `yaml:"yellow"`
	Green   float64 `yaml:"green"`
	Current float64 `yaml:"current"`
}

// AcquisitionConfig contains acquisition loop settings
type AcquisitionConfig struct {
	Enabled *bool `yaml:"enabled"` // default: true
}

// IsEnabled returns whether the acquisition loop runs (default: true)
func (c *AcquisitionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ShiftConfig contains the working-shift window used by day reports
type ShiftConfig struct {
	Start string `yaml:"start"` // HH:MM
	End   string `yaml:"end"`   // HH:MM
}

// Offsets returns start and end as offsets from midnight
func (c *ShiftConfig) Offsets() (time.Duration, time.Duration, error) {
	start, err := parseClock(c.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid shift start: %w", err)
	}
	end, err := parseClock(c.End)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid shift end: %w", err)
	}
	if end <= start {
		return 0, 0, fmt.Errorf("shift end %s is not after start %s", c.End, c.Start)
	}
	return start, end, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// LatestConfig contains settings for the latest-reading lookup
type LatestConfig struct {
	Window Duration `yaml:"window"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // default: true
	RetentionPeriod Duration `yaml:"retention_period"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// IsEnabled returns whether the ledger is enabled (default: true)
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// IngestConfig contains settings for the HTTP reading ingest server
type IngestConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // Negative disables the limit (default: 20)
}

// MQTTConfig contains settings for publishing classified minutes
type MQTTConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Broker   string   `yaml:"broker"`
	ClientID string   `yaml:"client_id"`
	Topic    string   `yaml:"topic"`
	Timeout  Duration `yaml:"timeout"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	// Thresholds are pre-filled so that an explicit 0 survives
	cfg := Config{Thresholds: defaultThresholds}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var defaultThresholds = ThresholdsConfig{Red: 200, Yellow: 200, Green: 200, Current: 3.0}

func validate(cfg *Config) error {
	if _, err := cfg.Data.Location(); err != nil {
		return err
	}
	if _, _, err := cfg.Shift.Offsets(); err != nil {
		return err
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"thresholds.red", cfg.Thresholds.Red},
		{"thresholds.yellow", cfg.Thresholds.Yellow},
		{"thresholds.green", cfg.Thresholds.Green},
		{"thresholds.current", cfg.Thresholds.Current},
	}
	for _, t := range thresholds {
		if t.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", t.name, t.value)
		}
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"latest.window", cfg.Latest.Window},
		{"ledger.retention_period", cfg.Ledger.RetentionPeriod},
		{"ledger.cleanup_interval", cfg.Ledger.CleanupInterval},
		{"mqtt.timeout", cfg.MQTT.Timeout},
		{"shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value.Duration())
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Data defaults
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "./data"
	}
	if cfg.Data.ItemSheetDir == "" {
		cfg.Data.ItemSheetDir = cfg.Data.Dir
	}
	if cfg.Data.ItemSheetPrefix == "" {
		cfg.Data.ItemSheetPrefix = "items"
	}
	if cfg.Data.Timezone == "" {
		cfg.Data.Timezone = "Local"
	}

	// Shift defaults
	if cfg.Shift.Start == "" {
		cfg.Shift.Start = "08:00"
	}
	if cfg.Shift.End == "" {
		cfg.Shift.End = "17:00"
	}

	if cfg.Latest.Window == 0 {
		cfg.Latest.Window = Duration(5 * time.Minute)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./lampd.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionPeriod == 0 {
		cfg.Ledger.RetentionPeriod = Duration(30 * 24 * time.Hour)
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// Ingest defaults
	if cfg.Ingest.Port == 0 {
		cfg.Ingest.Port = 8080
	}
	if cfg.Ingest.Host == "" {
		cfg.Ingest.Host = "0.0.0.0"
	}
	if cfg.Ingest.RateLimitRPS == 0 {
		cfg.Ingest.RateLimitRPS = 20
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "lampd"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "lampd/state"
	}
	if cfg.MQTT.Timeout == 0 {
		cfg.MQTT.Timeout = Duration(5 * time.Second)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
