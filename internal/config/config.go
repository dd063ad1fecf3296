package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type   string       `mapstructure:"type"` // "bolt", "redis" or "sqlite"
	Path   string       `mapstructure:"path"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// RedisConfig defines the Redis connection
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	JournalLimit int    `mapstructure:"journal_limit"`
}

// SQLiteConfig defines the SQLite database
type SQLiteConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout string `mapstructure:"busy_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig defines the periodic driver
type EngineConfig struct {
	TickInterval         string `mapstructure:"tick_interval"`
	GrantInterval        string `mapstructure:"grant_interval"`
	InactivityInterval   string `mapstructure:"inactivity_interval"`
	SaveInterval         string `mapstructure:"save_interval"`
	RolloverTime         string `mapstructure:"rollover_time"`
	Timezone             string `mapstructure:"timezone"`
	UsageRetentionDays   int    `mapstructure:"usage_retention_days"`
	JournalRetentionDays int    `mapstructure:"journal_retention_days"`
	RecommendCacheSize   int    `mapstructure:"recommend_cache_size"`
	PIDFile              string `mapstructure:"pid_file"` // empty disables reload signalling
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// DefaultsConfig seeds user settings before any are saved. Zero goals and
// caps mean "none".
type DefaultsConfig struct {
	GracePeriodMinutes int    `mapstructure:"grace_period_minutes"`
	AutoPauseEnabled   bool   `mapstructure:"auto_pause_enabled"`
	AutoPauseMinutes   int    `mapstructure:"auto_pause_minutes"`
	DailyGoalMinutes   int    `mapstructure:"daily_goal_minutes"`
	WeeklyGoalMinutes  int    `mapstructure:"weekly_goal_minutes"`
	MonthlyGoalMinutes int    `mapstructure:"monthly_goal_minutes"`
	MaxWalletTokens    int    `mapstructure:"max_wallet_tokens"`
	TimeDisplay        string `mapstructure:"time_display"`
	WeekStart          string `mapstructure:"week_start"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("TOKENTIMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			if !isNotFound(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, use defaults and environment variables
		}
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Keys returns every recognised configuration key.
func Keys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	return keys
}

func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/tokentimer/tokentimer.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "tokentimer")
	v.SetDefault("storage.redis.journal_limit", 1000)
	v.SetDefault("storage.sqlite.path", "/var/lib/tokentimer/tokentimer.db")
	v.SetDefault("storage.sqlite.busy_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Engine defaults
	v.SetDefault("engine.tick_interval", "1s")
	v.SetDefault("engine.grant_interval", "1m")
	v.SetDefault("engine.inactivity_interval", "30s")
	v.SetDefault("engine.save_interval", "1m")
	v.SetDefault("engine.rollover_time", "00:00")
	v.SetDefault("engine.timezone", "Local")
	v.SetDefault("engine.usage_retention_days", 90)
	v.SetDefault("engine.journal_retention_days", 365)
	v.SetDefault("engine.recommend_cache_size", 64)
	v.SetDefault("engine.pid_file", "/var/lib/tokentimer/tokentimer.pid")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)

	// User setting defaults
	d := settings.Defaults()
	v.SetDefault("defaults.grace_period_minutes", d.GracePeriodMinutes)
	v.SetDefault("defaults.auto_pause_enabled", d.AutoPauseEnabled)
	v.SetDefault("defaults.auto_pause_minutes", d.AutoPauseMinutes)
	v.SetDefault("defaults.daily_goal_minutes", 0)
	v.SetDefault("defaults.weekly_goal_minutes", 0)
	v.SetDefault("defaults.monthly_goal_minutes", 0)
	v.SetDefault("defaults.max_wallet_tokens", 0)
	v.SetDefault("defaults.time_display", string(d.TimeDisplay))
	v.SetDefault("defaults.week_start", d.WeekStart.String())
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Storage.Type {
	case "", "bolt":
		cfg.Storage.Type = "bolt"
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be bolt, redis, or sqlite)", cfg.Storage.Type)
	}

	for name, value := range map[string]string{
		"engine.tick_interval":       cfg.Engine.TickInterval,
		"engine.grant_interval":      cfg.Engine.GrantInterval,
		"engine.inactivity_interval": cfg.Engine.InactivityInterval,
		"engine.save_interval":       cfg.Engine.SaveInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := time.Parse("15:04", cfg.Engine.RolloverTime); err != nil {
		return fmt.Errorf("invalid engine.rollover_time %q (want HH:MM): %w", cfg.Engine.RolloverTime, err)
	}
	if _, err := cfg.Engine.Location(); err != nil {
		return err
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	if _, err := cfg.Defaults.Settings(); err != nil {
		return fmt.Errorf("invalid defaults: %w", err)
	}

	return nil
}

// Location resolves the configured timezone.
func (e EngineConfig) Location() (*time.Location, error) {
	if e.Timezone == "" || e.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid engine.timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

// MetricsAddr returns the listen address for the metrics server.
func (m MetricsConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", m.BindAddress, m.Port)
}

// Settings converts the configured defaults into user settings.
func (d DefaultsConfig) Settings() (settings.Settings, error) {
	display, err := settings.ParseTimeDisplay(d.TimeDisplay)
	if err != nil {
		return settings.Settings{}, err
	}
	weekStart, err := ParseWeekday(d.WeekStart)
	if err != nil {
		return settings.Settings{}, err
	}

	s := settings.Settings{
		GracePeriodMinutes: d.GracePeriodMinutes,
		AutoPauseEnabled:   d.AutoPauseEnabled,
		AutoPauseMinutes:   d.AutoPauseMinutes,
		DailyGoalMinutes:   settings.Limit(d.DailyGoalMinutes),
		WeeklyGoalMinutes:  settings.Limit(d.WeeklyGoalMinutes),
		MonthlyGoalMinutes: settings.Limit(d.MonthlyGoalMinutes),
		MaxWalletTokens:    settings.Limit(d.MaxWalletTokens),
		TimeDisplay:        display,
		WeekStart:          weekStart,
	}
	return s, s.Validate()
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid week start: %q", s)
}
