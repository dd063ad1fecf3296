package service

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/recommend"
	"github.com/goodtune/tokentimer/internal/schedule"
	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/goodtune/tokentimer/internal/timer"
	"github.com/goodtune/tokentimer/internal/usage"
	"github.com/goodtune/tokentimer/internal/wallet"
)

// AddTokens credits count tokens and returns the new balance.
func (s *Service) AddTokens(ctx context.Context, count int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wallet.AddTokens(count, wallet.ReasonManual, s.clock.Now()); err != nil {
		return s.wallet.Balance(), err
	}
	s.persist(ctx)
	return s.wallet.Balance(), nil
}

// AddTokensUpToMax credits up to the configured wallet cap and returns the
// amount actually added.
func (s *Service) AddTokensUpToMax(ctx context.Context, count int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 {
		return 0, fmt.Errorf("add %d tokens: %w", count, wallet.ErrInvalidAmount)
	}
	added := s.wallet.AddTokensUpToMax(count, s.settings.MaxWalletTokens, wallet.ReasonManual, s.clock.Now())
	if added > 0 {
		s.persist(ctx)
	}
	return added, nil
}

// StartTimer redeems tokens and starts a session in one step. With too few
// tokens nothing changes and wallet.ErrInsufficientTokens is returned.
func (s *Service) StartTimer(ctx context.Context, tokens int) (timer.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine.State() != timer.StateIdle {
		return timer.Session{}, timer.ErrSessionActive
	}

	now := s.clock.Now()
	if err := s.wallet.Redeem(tokens, now); err != nil {
		return timer.Session{}, err
	}

	session, err := s.engine.Start(tokens, now)
	if err != nil {
		if rerr := s.wallet.AddTokens(tokens, wallet.ReasonRefund, now); rerr != nil {
			s.logger.Error().Err(rerr).Int("tokens", tokens).Msg("Failed to roll back redemption")
		}
		return timer.Session{}, err
	}

	s.persist(ctx)
	return session, nil
}

// PauseTimer pauses the running session.
func (s *Service) PauseTimer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Pause(s.clock.Now()); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// ResumeTimer resumes the paused session.
func (s *Service) ResumeTimer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Resume(s.clock.Now()); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// EndTimerEarly ends the session with the configured grace period. The
// boolean is false when no session existed.
func (s *Service) EndTimerEarly(ctx context.Context) (timer.Split, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	split, ended := s.engine.EndEarly(s.settings.GracePeriodMinutes, s.clock.Now())
	if ended {
		s.persist(ctx)
	}
	return split, ended
}

// FastForward makes the session finish within seconds. Debug only.
func (s *Service) FastForward(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.FastForward(s.clock.Now()); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// RecordActivity notes user activity for auto-pause.
func (s *Service) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RecordActivity(s.clock.Now())
}

// Tick completes the session once its time is up and reports whether it did.
func (s *Service) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.Tick(s.clock.Now()) {
		return false
	}
	s.persist(ctx)
	return true
}

// CheckInactivity auto-pauses an idle session and reports whether it did.
func (s *Service) CheckInactivity(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.CheckInactivity(s.clock.Now(), s.settings.AutoPauseEnabled, s.settings.AutoPauseMinutes) {
		return false
	}
	s.persist(ctx)
	return true
}

// ProcessGrants fires every due scheduled grant.
func (s *Service) ProcessGrants(ctx context.Context) schedule.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.grants.Process(s.clock.Now(), s.wallet)
	if len(result.Changed) > 0 {
		s.persist(ctx)
	}
	return result
}

// AddScheduledGrant validates and stores a new grant rule.
func (s *Service) AddScheduledGrant(ctx context.Context, g schedule.Grant) (schedule.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.grants.Add(g, s.clock.Now())
	if err != nil {
		return schedule.Grant{}, err
	}
	delete(s.deletedGrants, added.ID)
	s.persist(ctx)
	return added, nil
}

// UpdateScheduledGrant replaces an existing grant rule.
func (s *Service) UpdateScheduledGrant(ctx context.Context, g schedule.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.grants.Update(g); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// RemoveScheduledGrant deletes a grant rule.
func (s *Service) RemoveScheduledGrant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.grants.Remove(id); err != nil {
		return err
	}
	s.deletedGrants[id] = struct{}{}
	s.persist(ctx)
	return nil
}

// ToggleScheduledGrant flips a rule's active flag and returns the new value.
func (s *Service) ToggleScheduledGrant(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.grants.Toggle(id)
	if err != nil {
		return false, err
	}
	s.persist(ctx)
	return active, nil
}

// GrantStatus pairs a rule with its next fire time.
type GrantStatus struct {
	schedule.Grant
	Next *time.Time
}

// ScheduledGrants lists every rule in insertion order.
func (s *Service) ScheduledGrants() []GrantStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	grants := s.grants.List()
	out := make([]GrantStatus, 0, len(grants))
	for _, g := range grants {
		out = append(out, GrantStatus{Grant: g, Next: schedule.NextOccurrence(g, now)})
	}
	return out
}

// GetRecommendations returns up to three ranked session-size suggestions.
func (s *Service) GetRecommendations() []recommend.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recs.Get(s.usage, s.settings, s.wallet.Balance(), s.clock.Now())
}

// Settings returns the current preference snapshot.
func (s *Service) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings validates and replaces the preference snapshot.
func (s *Service) UpdateSettings(ctx context.Context, st settings.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = st
	s.persist(ctx)
	return nil
}

// ResetWallet empties the wallet.
func (s *Service) ResetWallet(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet.Reset(s.clock.Now())
	s.persist(ctx)
}

// ResetStats clears the usage ledger.
func (s *Service) ResetStats(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage.Reset()
	s.recs.Purge()
	s.persist(ctx)
}

// Status is a point-in-time view of the wallet and timer.
type Status struct {
	Now           time.Time
	Balance       int
	State         timer.State
	Session       *timer.Session
	Remaining     time.Duration
	InGracePeriod bool
	Settings      settings.Settings
}

// Status reports the wallet and timer state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := Status{
		Now:      now,
		Balance:  s.wallet.Balance(),
		State:    s.engine.State(),
		Session:  s.engine.Session(),
		Settings: s.settings,
	}
	if st.Session != nil {
		st.Remaining = st.Session.Remaining(now)
		st.InGracePeriod = st.Session.InGracePeriod(s.settings.GracePeriodMinutes, now)
	}
	return st
}

// Stats summarizes usage against the configured goals.
func (s *Service) Stats() usage.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.settings
	return s.usage.Summarize(s.clock.Now(), st.WeekStart, st.DailyGoalMinutes, st.WeeklyGoalMinutes, st.MonthlyGoalMinutes)
}

// Sessions returns the session history, oldest first.
func (s *Service) Sessions() []usage.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage.Sessions()
}

// Journal returns up to limit wallet movements, newest first.
func (s *Service) Journal(ctx context.Context, limit int) ([]wallet.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Flush first so the stored journal is complete.
	if s.dirty {
		if err := s.saveLocked(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist state")
		}
	}
	stored, err := s.store.Wallet().Journal(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	entries := make([]wallet.Entry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, fromJournalEntry(e))
	}
	return entries, nil
}

// Prune drops day buckets older than usageCutoff and journal entries older
// than journalCutoff. A zero cutoff skips that pass.
func (s *Service) Prune(ctx context.Context, usageCutoff, journalCutoff time.Time) (days, entries int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !usageCutoff.IsZero() {
		days = s.usage.Prune(usageCutoff)
	}
	s.persist(ctx)

	if !journalCutoff.IsZero() {
		entries, err = s.store.Wallet().DeleteJournalBefore(ctx, journalCutoff)
		if err != nil {
			return days, 0, fmt.Errorf("prune journal: %w", err)
		}
	}
	return days, entries, nil
}
