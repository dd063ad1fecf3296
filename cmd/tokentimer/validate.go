package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/tokentimer/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration file",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Token Timer configuration file for syntax and semantic errors.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Default(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := config.Keys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	modified := color.New(color.FgYellow, color.Bold)
	unchanged := color.New(color.FgGreen)
	field := func(name string, value, defaultValue interface{}) {
		dumpField(name, value, defaultValue, modified, unchanged)
	}

	// Storage
	_, _ = cyan.Println("\n[storage]")
	field("  type", cfg.Storage.Type, defaultCfg.Storage.Type)
	field("  path", cfg.Storage.Path, defaultCfg.Storage.Path)
	_, _ = cyan.Println("  [storage.redis]")
	field("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host)
	field("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port)
	field("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password))
	field("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB)
	field("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize)
	field("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns)
	field("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout)
	field("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout)
	field("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout)
	field("    key_prefix", cfg.Storage.Redis.KeyPrefix, defaultCfg.Storage.Redis.KeyPrefix)
	field("    journal_limit", cfg.Storage.Redis.JournalLimit, defaultCfg.Storage.Redis.JournalLimit)
	_, _ = cyan.Println("  [storage.sqlite]")
	field("    path", cfg.Storage.SQLite.Path, defaultCfg.Storage.SQLite.Path)
	field("    busy_timeout", cfg.Storage.SQLite.BusyTimeout, defaultCfg.Storage.SQLite.BusyTimeout)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	field("  level", cfg.Logging.Level, defaultCfg.Logging.Level)
	field("  format", cfg.Logging.Format, defaultCfg.Logging.Format)

	// Engine
	_, _ = cyan.Println("\n[engine]")
	field("  tick_interval", cfg.Engine.TickInterval, defaultCfg.Engine.TickInterval)
	field("  grant_interval", cfg.Engine.GrantInterval, defaultCfg.Engine.GrantInterval)
	field("  inactivity_interval", cfg.Engine.InactivityInterval, defaultCfg.Engine.InactivityInterval)
	field("  save_interval", cfg.Engine.SaveInterval, defaultCfg.Engine.SaveInterval)
	field("  rollover_time", cfg.Engine.RolloverTime, defaultCfg.Engine.RolloverTime)
	field("  timezone", cfg.Engine.Timezone, defaultCfg.Engine.Timezone)
	field("  usage_retention_days", cfg.Engine.UsageRetentionDays, defaultCfg.Engine.UsageRetentionDays)
	field("  journal_retention_days", cfg.Engine.JournalRetentionDays, defaultCfg.Engine.JournalRetentionDays)
	field("  recommend_cache_size", cfg.Engine.RecommendCacheSize, defaultCfg.Engine.RecommendCacheSize)
	field("  pid_file", cfg.Engine.PIDFile, defaultCfg.Engine.PIDFile)

	// Metrics
	_, _ = cyan.Println("\n[metrics]")
	field("  enabled", cfg.Metrics.Enabled, defaultCfg.Metrics.Enabled)
	field("  bind_address", cfg.Metrics.BindAddress, defaultCfg.Metrics.BindAddress)
	field("  port", cfg.Metrics.Port, defaultCfg.Metrics.Port)

	// User setting defaults
	_, _ = cyan.Println("\n[defaults]")
	field("  grace_period_minutes", cfg.Defaults.GracePeriodMinutes, defaultCfg.Defaults.GracePeriodMinutes)
	field("  auto_pause_enabled", cfg.Defaults.AutoPauseEnabled, defaultCfg.Defaults.AutoPauseEnabled)
	field("  auto_pause_minutes", cfg.Defaults.AutoPauseMinutes, defaultCfg.Defaults.AutoPauseMinutes)
	field("  daily_goal_minutes", cfg.Defaults.DailyGoalMinutes, defaultCfg.Defaults.DailyGoalMinutes)
	field("  weekly_goal_minutes", cfg.Defaults.WeeklyGoalMinutes, defaultCfg.Defaults.WeeklyGoalMinutes)
	field("  monthly_goal_minutes", cfg.Defaults.MonthlyGoalMinutes, defaultCfg.Defaults.MonthlyGoalMinutes)
	field("  max_wallet_tokens", cfg.Defaults.MaxWalletTokens, defaultCfg.Defaults.MaxWalletTokens)
	field("  time_display", cfg.Defaults.TimeDisplay, defaultCfg.Defaults.TimeDisplay)
	field("  week_start", cfg.Defaults.WeekStart, defaultCfg.Defaults.WeekStart)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
