package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/tokentimer/internal/clock"
	"github.com/goodtune/tokentimer/internal/driver"
	"github.com/goodtune/tokentimer/internal/metrics"
	"github.com/goodtune/tokentimer/internal/systemd"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the timer daemon",
	Long: `Run the background driver that counts down the active session, fires
scheduled grants, auto-pauses idle sessions, delivers reminders and prunes
old history at the daily rollover.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	cfg := a.cfg

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("storage", cfg.Storage.Type).
		Msg("Starting Token Timer")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.MetricsAddr(), logger)

		// Use systemd socket-activated listener if available
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start metrics server")
		}
		logger.Info().Msgf("Metrics: http://%s/metrics", cfg.Metrics.MetricsAddr())
	}

	drv, err := driver.New(a.svc, a.notifier, driver.Config{
		TickInterval:         parseDuration(cfg.Engine.TickInterval, time.Second),
		GrantInterval:        parseDuration(cfg.Engine.GrantInterval, time.Minute),
		InactivityInterval:   parseDuration(cfg.Engine.InactivityInterval, 30*time.Second),
		SaveInterval:         parseDuration(cfg.Engine.SaveInterval, time.Minute),
		RolloverTime:         cfg.Engine.RolloverTime,
		Location:             a.loc,
		UsageRetentionDays:   cfg.Engine.UsageRetentionDays,
		JournalRetentionDays: cfg.Engine.JournalRetentionDays,
	}, clock.Real{}, logger)
	if err != nil {
		return err
	}
	drv.Start()

	removePID, err := writePIDFile(cfg.Engine.PIDFile)
	if err != nil {
		logger.Warn().Err(err).Msg("Commands will not signal this daemon to reload")
		removePID = func() {}
	}
	defer removePID()

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	var watchdog <-chan time.Time
	if interval := systemd.WatchdogInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		watchdog = ticker.C
		logger.Debug().Dur("interval", interval).Msg("Systemd watchdog enabled")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	// Signal handling loop
	for running := true; running; {
		select {
		case <-watchdog:
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
			}
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logger.Info().Msg("SIGHUP received, reloading state...")
				if err := a.svc.Load(ctx); err != nil {
					logger.Error().Err(err).Msg("State reloaded with errors")
				} else {
					logger.Info().Msg("State reloaded")
				}
			case os.Interrupt, syscall.SIGTERM:
				logger.Info().Msg("Shutdown signal received, gracefully stopping...")
				running = false
			}
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := drv.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping driver")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("Token Timer stopped")

	return nil
}
