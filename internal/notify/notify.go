package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/tokentimer/internal/format"
	"github.com/goodtune/tokentimer/internal/timer"
	"github.com/rs/zerolog"
)

// LeadTimes are the silent-update offsets before completion.
var LeadTimes = []int{5, 10, 15, 30}

// Kind distinguishes the completion alert from silent updates.
type Kind string

const (
	KindCompletion Kind = "completion"
	KindUpdate     Kind = "update"
)

// Reminder is one scheduled notification.
type Reminder struct {
	ID        string
	Kind      Kind
	At        time.Time
	Title     string
	Body      string
	Silent    bool
	SessionID string
}

// Plan computes the reminders for a running session at now. Paused or
// finished sessions get none.
func Plan(s timer.Session, now time.Time) []Reminder {
	if !s.IsActive || s.IsPaused {
		return nil
	}
	remaining := s.Remaining(now)
	if remaining <= 0 {
		return nil
	}
	completion := now.Add(remaining)
	remainingMinutes := s.RemainingMinutes(now)

	reminders := []Reminder{{
		ID:        "timer_complete",
		Kind:      KindCompletion,
		At:        completion,
		Title:     "Leisure Time Complete",
		Body:      fmt.Sprintf("Your %d token timer has finished!", s.OriginalTokens),
		SessionID: s.ID,
	}}

	for _, lead := range LeadTimes {
		if lead >= remainingMinutes {
			continue
		}
		reminders = append(reminders, Reminder{
			ID:        fmt.Sprintf("timer_update_%d", lead),
			Kind:      KindUpdate,
			At:        completion.Add(-time.Duration(lead) * time.Minute),
			Title:     "Leisure Time Remaining",
			Body:      format.Remaining(lead),
			Silent:    true,
			SessionID: s.ID,
		})
	}
	return reminders
}

// Scheduler delivers reminders. Delivery mechanics are up to the
// implementation.
type Scheduler interface {
	Schedule(reminders []Reminder) error
	CancelAll() error
}

// LogScheduler records reminders and logs them when they come due on Fire.
type LogScheduler struct {
	mu      sync.Mutex
	pending []Reminder
	logger  zerolog.Logger
}

// NewLogScheduler creates a scheduler that reports through logger.
func NewLogScheduler(logger zerolog.Logger) *LogScheduler {
	return &LogScheduler{logger: logger.With().Str("component", "notify").Logger()}
}

// Schedule replaces every pending reminder.
func (l *LogScheduler) Schedule(reminders []Reminder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append([]Reminder(nil), reminders...)
	l.logger.Debug().Int("count", len(reminders)).Msg("Reminders scheduled")
	return nil
}

// CancelAll drops every pending reminder.
func (l *LogScheduler) CancelAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) > 0 {
		l.logger.Debug().Int("count", len(l.pending)).Msg("Reminders cancelled")
	}
	l.pending = nil
	return nil
}

// Pending returns the reminders not yet fired.
func (l *LogScheduler) Pending() []Reminder {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Reminder(nil), l.pending...)
}

// Fire logs and removes every reminder due at now.
func (l *LogScheduler) Fire(now time.Time) []Reminder {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []Reminder
	kept := l.pending[:0]
	for _, r := range l.pending {
		if r.At.After(now) {
			kept = append(kept, r)
			continue
		}
		due = append(due, r)
		event := l.logger.Info()
		if r.Silent {
			event = l.logger.Debug()
		}
		event.
			Str("reminder", r.ID).
			Str("session_id", r.SessionID).
			Str("title", r.Title).
			Msg(r.Body)
	}
	l.pending = kept
	return due
}
