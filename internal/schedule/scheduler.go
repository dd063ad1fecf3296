package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/metrics"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrGrantNotFound is returned for unknown grant IDs.
var ErrGrantNotFound = errors.New("schedule: grant not found")

// Wallet is the part of the wallet ledger the scheduler credits.
type Wallet interface {
	Balance() int
	AddTokens(count int, reason wallet.Reason, at time.Time) error
}

// Result summarizes a Process cycle.
type Result struct {
	// Changed holds the grants whose scheduled date moved forward.
	Changed []Grant
	// Due is the total owed across all fired grants before caps.
	Due int
	// Credited is what actually reached the wallet.
	Credited int
	// Deferred lists grants skipped this cycle because of calendar overflow.
	Deferred []string
}

// Scheduler owns the recurring grant rules. It is not safe for concurrent
// use; the service serializes access.
type Scheduler struct {
	grants []Grant
	logger zerolog.Logger
}

// NewScheduler creates a scheduler over the given rules.
func NewScheduler(grants []Grant, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{logger: logger.With().Str("component", "scheduler").Logger()}
	s.Set(grants)
	return s
}

// Set replaces every rule, typically after a load.
func (s *Scheduler) Set(grants []Grant) {
	s.grants = append([]Grant(nil), grants...)
}

// List returns a copy of the rules in insertion order.
func (s *Scheduler) List() []Grant {
	return append([]Grant(nil), s.grants...)
}

// Get returns a rule by ID.
func (s *Scheduler) Get(id string) (Grant, error) {
	i := s.index(id)
	if i < 0 {
		return Grant{}, fmt.Errorf("get grant %s: %w", id, ErrGrantNotFound)
	}
	return s.grants[i], nil
}

// Add appends a new rule, assigning an ID and creation date when missing.
func (s *Scheduler) Add(g Grant, now time.Time) (Grant, error) {
	if err := g.Validate(); err != nil {
		return Grant{}, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if s.index(g.ID) >= 0 {
		return Grant{}, fmt.Errorf("grant %s already exists", g.ID)
	}
	if g.CreatedDate.IsZero() {
		g.CreatedDate = now
	}

	s.grants = append(s.grants, g)
	s.logger.Info().
		Str("grant_id", g.ID).
		Str("title", g.Title).
		Int("tokens", g.TokenCount).
		Str("recurrence", string(g.Recurrence)).
		Time("scheduled_date", g.ScheduledDate).
		Msg("Scheduled grant added")
	return g, nil
}

// Update replaces an existing rule. The creation date is preserved.
func (s *Scheduler) Update(g Grant) error {
	i := s.index(g.ID)
	if i < 0 {
		return fmt.Errorf("update grant %s: %w", g.ID, ErrGrantNotFound)
	}
	if err := g.Validate(); err != nil {
		return err
	}
	g.CreatedDate = s.grants[i].CreatedDate
	s.grants[i] = g
	return nil
}

// Remove deletes a rule.
func (s *Scheduler) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("remove grant %s: %w", id, ErrGrantNotFound)
	}
	s.grants = append(s.grants[:i], s.grants[i+1:]...)
	return nil
}

// Toggle flips a rule's active flag and returns the new value.
func (s *Scheduler) Toggle(id string) (bool, error) {
	i := s.index(id)
	if i < 0 {
		return false, fmt.Errorf("toggle grant %s: %w", id, ErrGrantNotFound)
	}
	s.grants[i].IsActive = !s.grants[i].IsActive
	return s.grants[i].IsActive, nil
}

// Process fires every due active grant, compounding missed periods into one
// credit per grant and moving its scheduled date past now.
func (s *Scheduler) Process(now time.Time, w Wallet) Result {
	var result Result

	for i := range s.grants {
		g := &s.grants[i]
		if !g.IsActive || g.ScheduledDate.After(now) {
			continue
		}

		cursor, due, periods, err := catchUp(*g, now)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("grant_id", g.ID).
				Time("scheduled_date", g.ScheduledDate).
				Msg("Deferring grant after calendar overflow")
			result.Deferred = append(result.Deferred, g.ID)
			continue
		}
		if due == 0 {
			continue
		}

		g.ScheduledDate = cursor
		result.Changed = append(result.Changed, *g)
		result.Due += due

		amount := due
		if g.MaxWalletTokens != nil {
			amount = min(due, max(0, *g.MaxWalletTokens-w.Balance()))
		}
		if amount > 0 {
			if err := w.AddTokens(amount, wallet.ReasonGrant, now); err != nil {
				s.logger.Error().Err(err).Str("grant_id", g.ID).Msg("Failed to credit grant")
				continue
			}
			result.Credited += amount
		}

		metrics.GrantsFired.WithLabelValues(string(g.Recurrence)).Inc()
		metrics.GrantPeriodsCaughtUp.Add(float64(periods))

		s.logger.Info().
			Str("grant_id", g.ID).
			Str("title", g.Title).
			Int("periods", periods).
			Int("due", due).
			Int("credited", amount).
			Time("next", g.ScheduledDate).
			Msg("Scheduled grant fired")
	}

	return result
}

// catchUp walks the recurrence from the grant's scheduled date past now.
// On overflow nothing is returned so the grant is retried intact.
func catchUp(g Grant, now time.Time) (time.Time, int, int, error) {
	cursor := g.ScheduledDate
	due, periods := 0, 0
	for !cursor.After(now) {
		next, err := g.Recurrence.Advance(cursor)
		if err != nil {
			return g.ScheduledDate, 0, 0, err
		}
		due += g.TokenCount
		periods++
		cursor = next
	}
	return cursor, due, periods, nil
}

func (s *Scheduler) index(id string) int {
	for i := range s.grants {
		if s.grants[i].ID == id {
			return i
		}
	}
	return -1
}
