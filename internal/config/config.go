// Package config handles configuration loading from files, defaults, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"

	"github.com/javiermolinar/rendezvous/internal/logx"
	"github.com/javiermolinar/rendezvous/internal/policy"
	"github.com/javiermolinar/rendezvous/internal/tracing"
)

// Config holds the application configuration.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule" yaml:"schedule"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
	Watcher  WatcherConfig  `toml:"watcher" yaml:"watcher"`
	Events   EventsConfig   `toml:"events" yaml:"events"`
	Guard    GuardConfig    `toml:"guard" yaml:"guard"`
	Tracing  TracingConfig  `toml:"tracing" yaml:"tracing"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	UI       UIConfig       `toml:"ui" yaml:"ui"`
}

// ScheduleConfig holds the business window and duration rules.
type ScheduleConfig struct {
	DisplayTimezone  string `toml:"display_timezone" yaml:"display_timezone"`   // empty = host zone
	BusinessTimezone string `toml:"business_timezone" yaml:"business_timezone"` // IANA name
	OpeningTime      string `toml:"opening_time" yaml:"opening_time"`           // "HH:MM"
	BusinessHours    int    `toml:"business_hours" yaml:"business_hours"`
	MinDurationSlots int    `toml:"min_duration_slots" yaml:"min_duration_slots"` // 5 minute slots
	TestingMode      bool   `toml:"testing_mode" yaml:"testing_mode"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	Driver      string `toml:"driver" yaml:"driver"` // "sqlite", "postgres" or "memory"
	DBPath      string `toml:"db_path" yaml:"db_path"`
	PostgresURL string `toml:"postgres_url" yaml:"postgres_url"`
}

// WatcherConfig holds the upcoming watcher timings.
type WatcherConfig struct {
	Interval string `toml:"interval" yaml:"interval"`
	Horizon  string `toml:"horizon" yaml:"horizon"`
}

// EventsConfig holds the optional Kafka sink settings.
type EventsConfig struct {
	KafkaBrokers string `toml:"kafka_brokers" yaml:"kafka_brokers"` // comma separated
	KafkaTopic   string `toml:"kafka_topic" yaml:"kafka_topic"`
}

// GuardConfig holds the optional Redis lock settings.
type GuardConfig struct {
	RedisAddr string `toml:"redis_addr" yaml:"redis_addr"`
	TTL       string `toml:"ttl" yaml:"ttl"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `toml:"enabled" yaml:"enabled"`
	OTLPEndpoint string  `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRatio  float64 `toml:"sample_ratio" yaml:"sample_ratio"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "console" or "json"
	File   string `toml:"file" yaml:"file"`
}

// UIConfig holds TUI settings.
type UIConfig struct {
	Theme string `toml:"theme" yaml:"theme"` // "mocha", "macchiato", "frappe", "latte"
}

var validThemes = map[string]bool{
	"mocha":     true,
	"macchiato": true,
	"frappe":    true,
	"latte":     true,
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			DisplayTimezone:  "",
			BusinessTimezone: "America/New_York",
			OpeningTime:      policy.DefaultOpening,
			BusinessHours:    policy.DefaultBusinessHours,
			MinDurationSlots: policy.DefaultMinDurationSlots,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DBPath: defaultDBPath(),
		},
		Watcher: WatcherConfig{
			Interval: "1s",
			Horizon:  "15m",
		},
		Events: EventsConfig{
			KafkaTopic: "appointments",
		},
		Guard: GuardConfig{
			TTL: "5s",
		},
		Tracing: TracingConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Theme: "frappe",
		},
	}
}

// defaultDBPath returns the default database path.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rendezvous.db"
	}
	return filepath.Join(home, ".local", "share", "rendezvous", "rendezvous.db")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "rendezvous", "config.toml")
}

// Load loads configuration from the default path, merging with defaults and env vars.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from the specified path.
// It starts with defaults, overlays file config if it exists, then applies env overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads config from a file if it exists.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		return nil
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over file config.
func applyEnvOverrides(cfg *Config) error {
	// Schedule overrides
	if v := os.Getenv("RENDEZVOUS_DISPLAY_TIMEZONE"); v != "" {
		cfg.Schedule.DisplayTimezone = v
	}
	if v := os.Getenv("RENDEZVOUS_BUSINESS_TIMEZONE"); v != "" {
		cfg.Schedule.BusinessTimezone = v
	}
	if v := os.Getenv("RENDEZVOUS_OPENING_TIME"); v != "" {
		cfg.Schedule.OpeningTime = v
	}
	if v := os.Getenv("RENDEZVOUS_MIN_DURATION_SLOTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RENDEZVOUS_MIN_DURATION_SLOTS: %w", err)
		}
		cfg.Schedule.MinDurationSlots = n
	}
	if v := os.Getenv("RENDEZVOUS_TESTING_MODE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RENDEZVOUS_TESTING_MODE: %w", err)
		}
		cfg.Schedule.TestingMode = on
	}

	// Storage overrides
	if v := os.Getenv("RENDEZVOUS_DB_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("RENDEZVOUS_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("RENDEZVOUS_POSTGRES_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}

	if v := os.Getenv("RENDEZVOUS_KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = v
	}
	if v := os.Getenv("RENDEZVOUS_KAFKA_TOPIC"); v != "" {
		cfg.Events.KafkaTopic = v
	}
	if v := os.Getenv("RENDEZVOUS_REDIS_ADDR"); v != "" {
		cfg.Guard.RedisAddr = v
	}

	// Setting an endpoint turns tracing on.
	if v := os.Getenv("RENDEZVOUS_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.OTLPEndpoint = v
	}

	if v := os.Getenv("RENDEZVOUS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RENDEZVOUS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RENDEZVOUS_UI_THEME"); v != "" {
		cfg.UI.Theme = v
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateTime(c.Schedule.OpeningTime, "opening_time"); err != nil {
		return err
	}
	pc, err := c.PolicyConfig()
	if err != nil {
		return err
	}
	if _, err := policy.New(pc); err != nil {
		return err
	}
	if c.Schedule.DisplayTimezone != "" {
		if _, err := time.LoadLocation(c.Schedule.DisplayTimezone); err != nil {
			return fmt.Errorf("display_timezone: %w", err)
		}
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return errors.New("db_path must be set")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres_url must be set for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	interval, err := positiveDuration(c.Watcher.Interval, "watcher.interval")
	if err != nil {
		return err
	}
	if interval < time.Second || interval%time.Second != 0 {
		return fmt.Errorf("watcher.interval must be a whole number of seconds, got %q", c.Watcher.Interval)
	}
	if _, err := positiveDuration(c.Watcher.Horizon, "watcher.horizon"); err != nil {
		return err
	}
	if _, err := positiveDuration(c.Guard.TTL, "guard.ttl"); err != nil {
		return err
	}

	if c.Events.KafkaBrokers != "" && c.Events.KafkaTopic == "" {
		return errors.New("kafka_topic must be set when kafka_brokers is")
	}
	if c.Tracing.Enabled && c.Tracing.OTLPEndpoint == "" {
		return errors.New("otlp_endpoint must be set when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}
	if _, err := logx.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "console" && f != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.Log.Format)
	}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		return fmt.Errorf("unknown theme %q", c.UI.Theme)
	}
	return nil
}

// validateTime checks if a time string is in HH:MM format.
func validateTime(t, field string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, t)
	}
	hour := t[0:2]
	min := t[3:5]
	if !isDigits(hour) || !isDigits(min) {
		return fmt.Errorf("%s must be in HH:MM format, got %q", field, t)
	}
	return nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func positiveDuration(s, field string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", field, s)
	}
	return d, nil
}

// PolicyConfig resolves the schedule section into a policy.Config.
func (c *Config) PolicyConfig() (policy.Config, error) {
	loc, err := time.LoadLocation(c.Schedule.BusinessTimezone)
	if err != nil {
		return policy.Config{}, fmt.Errorf("business_timezone: %w", err)
	}
	return policy.Config{
		Opening:          c.Schedule.OpeningTime,
		BusinessHours:    c.Schedule.BusinessHours,
		MinDurationSlots: c.Schedule.MinDurationSlots,
		Location:         loc,
		Testing:          c.Schedule.TestingMode,
	}, nil
}

// WatchInterval returns the watcher tick interval.
func (c *Config) WatchInterval() time.Duration {
	d, _ := time.ParseDuration(c.Watcher.Interval)
	return d
}

// WatchHorizon returns how far ahead the watcher looks.
func (c *Config) WatchHorizon() time.Duration {
	d, _ := time.ParseDuration(c.Watcher.Horizon)
	return d
}

// GuardTTL returns the Redis lock expiry.
func (c *Config) GuardTTL() time.Duration {
	d, _ := time.ParseDuration(c.Guard.TTL)
	return d
}

// LogxConfig returns the logger settings.
func (c *Config) LogxConfig() logx.Config {
	return logx.Config{Level: c.Log.Level, Format: c.Log.Format, File: c.Log.File}
}

// TracingSetup returns the tracer settings.
func (c *Config) TracingSetup() tracing.Config {
	return tracing.Config{
		Enabled:      c.Tracing.Enabled,
		ServiceName:  "rendezvous",
		OTLPEndpoint: c.Tracing.OTLPEndpoint,
		SampleRatio:  c.Tracing.SampleRatio,
	}
}

// Save writes the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo writes the configuration to the specified path, as YAML when the
// extension says so and TOML otherwise.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = toml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
