// Package service is the single entry point that owns the wallet, timer,
// grant scheduler and usage ledger, serializes their mutations and persists
// them through a storage.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/tokentimer/internal/clock"
	"github.com/goodtune/tokentimer/internal/metrics"
	"github.com/goodtune/tokentimer/internal/notify"
	"github.com/goodtune/tokentimer/internal/recommend"
	"github.com/goodtune/tokentimer/internal/schedule"
	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/goodtune/tokentimer/internal/timer"
	"github.com/goodtune/tokentimer/internal/usage"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/rs/zerolog"
)

// Options configures a Service. Zero values fall back to sensible defaults.
type Options struct {
	Clock     clock.Clock
	Location  *time.Location
	Notifier  notify.Scheduler
	Defaults  *settings.Settings
	CacheSize int
}

// Service hosts the engines. All methods are safe for concurrent use.
// Listeners registered with Subscribe run with the service lock held and
// must not call back into the Service.
type Service struct {
	mu sync.Mutex

	store    storage.Store
	clock    clock.Clock
	loc      *time.Location
	notifier notify.Scheduler
	logger   zerolog.Logger

	wallet   *wallet.Ledger
	engine   *timer.Engine
	grants   *schedule.Scheduler
	usage    *usage.Ledger
	recs     *recommend.Cache
	settings settings.Settings
	defaults settings.Settings

	// journal entries drained from the wallet but not yet persisted
	pendingJournal []storage.JournalEntry
	// set by every mutation, cleared by a successful save
	dirty          bool
	mutations      uint64
	deletedGrants  map[string]struct{}
	listeners      []timer.Listener
}

// New creates a service over store. Call Load before use.
func New(store storage.Store, opts Options, logger zerolog.Logger) (*Service, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	defaults := settings.Defaults()
	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}

	logger = logger.With().Str("component", "service").Logger()
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogScheduler(logger)
	}

	recs, err := recommend.NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:         store,
		clock:         opts.Clock,
		loc:           opts.Location,
		notifier:      opts.Notifier,
		logger:        logger,
		wallet:        wallet.NewLedger(0),
		engine:        timer.NewEngine(logger),
		grants:        schedule.NewScheduler(nil, logger),
		usage:         usage.NewLedger(usage.Data{}, opts.Location),
		recs:          recs,
		settings:      defaults,
		defaults:      defaults,
		deletedGrants: make(map[string]struct{}),
	}
	s.engine.Subscribe(s.onTimerEvent)
	return s, nil
}

// Subscribe registers a listener for timer transitions.
func (s *Service) Subscribe(l timer.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load restores every entity from storage, replacing the in-memory state. It
// is also how a running daemon picks up changes written by another process.
// Entities that fail to load fall back to defaults; the joined errors are
// returned for logging and the service remains usable.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var errs []error
	fail := func(op string, err error) {
		metrics.StorageErrors.WithLabelValues("load_" + op).Inc()
		s.logger.Warn().Err(err).Str("entity", op).Msg("Failed to load, using defaults")
		errs = append(errs, fmt.Errorf("load %s: %w", op, err))
	}

	s.settings = s.defaults
	if stored, err := s.store.Settings().Get(ctx); err == nil {
		if st, err := fromStoredSettings(*stored); err == nil {
			s.settings = st
		} else {
			fail("settings", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		fail("settings", err)
	}

	s.wallet = wallet.NewLedger(0)
	if stored, err := s.store.Wallet().Get(ctx); err == nil {
		s.wallet = wallet.NewLedger(stored.TotalTokens)
	} else if !errors.Is(err, storage.ErrNotFound) {
		fail("wallet", err)
	}

	s.usage = usage.NewLedger(usage.Data{}, s.loc)
	if stored, err := s.store.Usage().Get(ctx); err == nil {
		s.usage = usage.NewLedger(fromStoredUsage(*stored), s.loc)
	} else if !errors.Is(err, storage.ErrNotFound) {
		fail("usage", err)
	}
	s.recs.Purge()

	var grants []schedule.Grant
	if stored, err := s.store.Grants().List(ctx); err == nil {
		for _, sg := range stored {
			if _, gone := s.deletedGrants[sg.ID]; gone {
				continue
			}
			g, err := fromStoredGrant(sg)
			if err != nil {
				fail("grants", err)
				continue
			}
			grants = append(grants, g)
		}
	} else {
		fail("grants", err)
	}
	s.grants.Set(grants)

	// The engine is rebuilt so a reload never inherits a live session.
	if s.engine.Session() != nil {
		s.cancelReminders()
	}
	metrics.SessionActive.Set(0)
	s.engine = timer.NewEngine(s.logger)
	s.engine.Subscribe(s.onTimerEvent)
	if stored, err := s.store.Session().Get(ctx); err == nil {
		if err := s.engine.Restore(fromStoredSession(*stored), now); err != nil {
			var corrupt *timer.CorruptSessionError
			if errors.As(err, &corrupt) {
				if err := s.wallet.AddTokens(corrupt.Refund, wallet.ReasonRefund, now); err != nil {
					s.logger.Error().Err(err).Msg("Failed to refund corrupted session")
				}
			}
			errs = append(errs, fmt.Errorf("restore session: %w", err))
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		fail("session", err)
	}

	s.grants.Process(now, s.wallet)

	s.logger.Info().
		Int("balance", s.wallet.Balance()).
		Int("grants", len(grants)).
		Str("timer", s.engine.State().String()).
		Msg("State loaded")

	if err := s.saveLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Save persists every entity if anything changed since the last successful
// save. It is best-effort: every entity is attempted and the joined errors
// are returned. A clean service writes nothing, so it never overwrites
// changes another process made to the store.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked(ctx)
}

// Mutations reports how many state changes this service has made.
func (s *Service) Mutations() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

func (s *Service) saveLocked(ctx context.Context) error {
	now := s.clock.Now()
	var errs []error
	fail := func(op string, err error) {
		metrics.StorageErrors.WithLabelValues("save_" + op).Inc()
		errs = append(errs, fmt.Errorf("save %s: %w", op, err))
	}

	s.drainJournal()
	balance := s.wallet.Balance()
	metrics.WalletBalance.Set(float64(balance))
	if err := s.store.Wallet().Save(ctx, storage.Wallet{TotalTokens: balance, UpdatedAt: now}, s.pendingJournal); err != nil {
		fail("wallet", err)
	} else {
		s.pendingJournal = nil
	}

	if session := s.engine.Session(); session != nil {
		if err := s.store.Session().Put(ctx, toStoredSession(*session, s.engine.LastActivity())); err != nil {
			fail("session", err)
		}
	} else if err := s.store.Session().Clear(ctx); err != nil {
		fail("session", err)
	}

	if err := s.store.Usage().Save(ctx, toStoredUsage(s.usage.Snapshot())); err != nil {
		fail("usage", err)
	}

	for i, g := range s.grants.List() {
		if err := s.store.Grants().Upsert(ctx, toStoredGrant(g, i)); err != nil {
			fail("grants", err)
		}
	}
	for id := range s.deletedGrants {
		if err := s.store.Grants().Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			fail("grants", err)
			continue
		}
		delete(s.deletedGrants, id)
	}

	if err := s.store.Settings().Save(ctx, toStoredSettings(s.settings)); err != nil {
		fail("settings", err)
	}

	s.dirty = len(errs) > 0
	return errors.Join(errs...)
}

// persist saves after a command and only logs failures. A failed save
// leaves the service dirty for the next Save.
func (s *Service) persist(ctx context.Context) {
	s.dirty = true
	s.mutations++
	if err := s.saveLocked(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist state")
	}
}

// drainJournal moves fresh wallet entries into the pending batch and
// records their metrics.
func (s *Service) drainJournal() {
	for _, e := range s.wallet.DrainJournal() {
		switch {
		case e.Kind == wallet.EntryCredit:
			metrics.TokensCredited.WithLabelValues(string(e.Reason)).Add(float64(e.Amount))
		case e.Reason == wallet.ReasonRedeem:
			metrics.TokensRedeemed.Add(float64(e.Amount))
		}
		s.pendingJournal = append(s.pendingJournal, toJournalEntry(e))
	}
}

func (s *Service) onTimerEvent(ev timer.Event) {
	switch ev.Kind {
	case timer.EventStarted, timer.EventResumed:
		metrics.SessionActive.Set(1)
		s.scheduleReminders(ev.Session, ev.At)
	case timer.EventRestored:
		metrics.SessionActive.Set(1)
		if !ev.Session.IsPaused {
			s.scheduleReminders(ev.Session, ev.At)
		}
	case timer.EventUpdated:
		if !ev.Session.IsPaused {
			s.scheduleReminders(ev.Session, ev.At)
		}
	case timer.EventPaused:
		s.cancelReminders()
	case timer.EventCompleted:
		s.finishSession(ev, true)
	case timer.EventEndedEarly:
		if ev.Returned > 0 {
			if err := s.wallet.AddTokens(ev.Returned, wallet.ReasonRefund, ev.At); err != nil {
				s.logger.Error().Err(err).Int("tokens", ev.Returned).Msg("Failed to return tokens")
			}
			metrics.TokensReturned.Add(float64(ev.Returned))
		}
		s.finishSession(ev, false)
	}

	for _, l := range s.listeners {
		l(ev)
	}
}

// finishSession writes the history record for a terminated session.
func (s *Service) finishSession(ev timer.Event, completed bool) {
	minutes := ev.Redeemed * wallet.MinutesPerToken
	s.usage.RecordSession(usage.SessionRecord{
		ID:               ev.Session.ID,
		StartTime:        ev.Session.StartTime,
		EndTime:          ev.At,
		OriginalTokens:   ev.Session.OriginalTokens,
		ActualMinutes:    minutes,
		WasCompleted:     completed,
		WasInGracePeriod: ev.WasInGracePeriod,
	})
	if minutes > 0 {
		s.usage.RecordUsage(minutes, ev.At)
		metrics.UsageMinutesConsumed.Add(float64(minutes))
	}

	outcome := "ended_early"
	if completed {
		outcome = "completed"
	}
	metrics.SessionsFinished.WithLabelValues(outcome).Inc()
	metrics.SessionActive.Set(0)
	s.cancelReminders()
}

func (s *Service) scheduleReminders(session timer.Session, now time.Time) {
	if err := s.notifier.Schedule(notify.Plan(session, now)); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to schedule reminders")
	}
}

func (s *Service) cancelReminders() {
	if err := s.notifier.CancelAll(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cancel reminders")
	}
}
