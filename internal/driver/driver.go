// Package driver runs the periodic loop that advances the timer, fires
// scheduled grants, auto-pauses idle sessions and rolls usage over daily.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/tokentimer/internal/clock"
	"github.com/goodtune/tokentimer/internal/notify"
	"github.com/goodtune/tokentimer/internal/schedule"
	"github.com/rs/zerolog"
)

// Service is the part of service.Service the driver calls.
type Service interface {
	Tick(ctx context.Context) bool
	ProcessGrants(ctx context.Context) schedule.Result
	CheckInactivity(ctx context.Context) bool
	Save(ctx context.Context) error
	Prune(ctx context.Context, usageCutoff, journalCutoff time.Time) (int, int, error)
}

// Reminders delivers notifications that have come due.
type Reminders interface {
	Fire(now time.Time) []notify.Reminder
}

// Config holds the loop cadence and retention policy.
type Config struct {
	TickInterval         time.Duration
	GrantInterval        time.Duration
	InactivityInterval   time.Duration
	SaveInterval         time.Duration
	RolloverTime         string // HH:MM in Location
	Location             *time.Location
	UsageRetentionDays   int
	JournalRetentionDays int
}

// Driver owns the background goroutine.
type Driver struct {
	svc       Service
	reminders Reminders
	cfg       Config
	rollover  time.Time // only hour and minute are used
	clock     clock.Clock
	logger    zerolog.Logger

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a driver. reminders may be nil.
func New(svc Service, reminders Reminders, cfg Config, clk clock.Clock, logger zerolog.Logger) (*Driver, error) {
	rollover, err := time.Parse("15:04", cfg.RolloverTime)
	if err != nil {
		return nil, fmt.Errorf("invalid rollover time %q: %w", cfg.RolloverTime, err)
	}
	for name, d := range map[string]time.Duration{
		"tick":       cfg.TickInterval,
		"grant":      cfg.GrantInterval,
		"inactivity": cfg.InactivityInterval,
		"save":       cfg.SaveInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s interval must be positive, got %s", name, d)
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Driver{
		svc:       svc,
		reminders: reminders,
		cfg:       cfg,
		rollover:  rollover,
		clock:     clk,
		logger:    logger.With().Str("component", "driver").Logger(),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins the loop.
func (d *Driver) Start() {
	go d.run()
	d.logger.Info().
		Dur("tick_interval", d.cfg.TickInterval).
		Dur("grant_interval", d.cfg.GrantInterval).
		Str("rollover_time", d.rollover.Format("15:04")).
		Msg("Driver started")
}

// Stop ends the loop, waits for it to exit and saves once more.
func (d *Driver) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopChan) })
	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := d.svc.Save(ctx)
	d.logger.Info().Msg("Driver stopped")
	return err
}

// run is the main loop
func (d *Driver) run() {
	defer close(d.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tick := time.NewTicker(d.cfg.TickInterval)
	defer tick.Stop()
	grants := time.NewTicker(d.cfg.GrantInterval)
	defer grants.Stop()
	inactivity := time.NewTicker(d.cfg.InactivityInterval)
	defer inactivity.Stop()
	save := time.NewTicker(d.cfg.SaveInterval)
	defer save.Stop()

	next, wait := d.nextRollover()
	rollover := time.NewTimer(wait)
	defer rollover.Stop()
	d.logger.Debug().Time("next_rollover", next).Msg("Scheduled next rollover")

	for {
		select {
		case <-d.stopChan:
			return
		case <-tick.C:
			d.svc.Tick(ctx)
			if d.reminders != nil {
				d.reminders.Fire(d.clock.Now())
			}
		case <-grants.C:
			if res := d.svc.ProcessGrants(ctx); len(res.Changed) > 0 {
				d.logger.Info().
					Int("due", res.Due).
					Int("credited", res.Credited).
					Msg("Scheduled grants processed")
			}
		case <-inactivity.C:
			d.svc.CheckInactivity(ctx)
		case <-save.C:
			if err := d.svc.Save(ctx); err != nil {
				d.logger.Error().Err(err).Msg("Periodic save failed")
			}
		case <-rollover.C:
			d.performRollover(ctx)
			next, wait = d.nextRollover()
			rollover.Reset(wait)
			d.logger.Debug().Time("next_rollover", next).Msg("Scheduled next rollover")
		}
	}
}

// nextRollover returns the next rollover instant and how long until it,
// both measured on the driver's clock.
func (d *Driver) nextRollover() (time.Time, time.Duration) {
	now := d.clock.Now()
	next := d.calculateNextRollover(now)
	return next, next.Sub(now)
}

// calculateNextRollover returns the first rollover instant strictly after now
func (d *Driver) calculateNextRollover(now time.Time) time.Time {
	now = now.In(d.cfg.Location)
	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		d.rollover.Hour(), d.rollover.Minute(), 0, 0,
		d.cfg.Location,
	)
	if now.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// performRollover prunes history past the retention windows
func (d *Driver) performRollover(ctx context.Context) {
	now := d.clock.Now()
	var usageCutoff, journalCutoff time.Time
	if d.cfg.UsageRetentionDays > 0 {
		usageCutoff = now.AddDate(0, 0, -d.cfg.UsageRetentionDays)
	}
	if d.cfg.JournalRetentionDays > 0 {
		journalCutoff = now.AddDate(0, 0, -d.cfg.JournalRetentionDays)
	}

	days, entries, err := d.svc.Prune(ctx, usageCutoff, journalCutoff)
	if err != nil {
		d.logger.Error().Err(err).Msg("Rollover prune failed")
		return
	}
	d.logger.Info().
		Int("days_removed", days).
		Int("journal_removed", entries).
		Msg("Daily rollover complete")
}
