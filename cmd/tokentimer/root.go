package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/tokentimer/internal/clock"
	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/notify"
	"github.com/goodtune/tokentimer/internal/service"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/goodtune/tokentimer/internal/storage/bolt"
	"github.com/goodtune/tokentimer/internal/storage/redis"
	"github.com/goodtune/tokentimer/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tokentimer",
	Short: "Token Timer - a personal time economy",
	Long: `Token Timer manages a wallet of time tokens worth 15 minutes each.
Tokens are redeemed to run a countdown, granted on a recurring schedule,
and usage history drives suggestions for the next session.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/tokentimer/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    storage.Store
	svc      *service.Service
	notifier *notify.LogScheduler
	loc      *time.Location
}

// openApp loads configuration, opens storage and restores the service.
// Load problems are logged and the service continues with defaults. Quiet
// mode logs warnings and above to stderr for one-shot commands.
func openApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var logger zerolog.Logger
	if quiet {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	} else {
		logger = setupLogger(cfg.Logging)
	}
	log.Logger = logger

	loc, err := cfg.Engine.Location()
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.Defaults.Settings()
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	notifier := notify.NewLogScheduler(logger)
	svc, err := service.New(store, service.Options{
		Clock:     clock.Real{},
		Location:  loc,
		Notifier:  notifier,
		Defaults:  &defaults,
		CacheSize: cfg.Engine.RecommendCacheSize,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := svc.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("State loaded with errors")
	}

	return &app{cfg: cfg, logger: logger, store: store, svc: svc, notifier: notifier, loc: loc}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

// withApp runs fn against a quietly loaded app.
func withApp(fn func(ctx context.Context, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		before := a.svc.Mutations()
		if err := fn(ctx, a); err != nil {
			return err
		}
		if a.svc.Mutations() != before {
			a.notifyDaemon()
		}
		return nil
	}
}

// notifyDaemon asks a running serve process to reload what this command
// wrote.
func (a *app) notifyDaemon() {
	signalled, err := signalReload(a.cfg.Engine.PIDFile)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to signal daemon to reload")
		return
	}
	if signalled {
		a.logger.Debug().Msg("Daemon signalled to reload")
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	case "sqlite":
		return sqlite.Open(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be bolt, redis, or sqlite)", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
