package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCalendarOverflow is returned when a recurrence step has no valid
// target date.
var ErrCalendarOverflow = errors.New("schedule: calendar overflow")

// maxYear bounds recurrence arithmetic to dates every backend can store.
const maxYear = 9999

// Recurrence is how often a grant fires.
type Recurrence string

const (
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
)

// ParseRecurrence normalizes a user-supplied recurrence name.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case Daily, Weekly, Monthly:
		return r, nil
	default:
		return "", fmt.Errorf("invalid recurrence: %s (must be daily, weekly, or monthly)", s)
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize the recurrence.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecurrence(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Advance returns t moved forward by one recurrence unit. Monthly steps
// clamp to the last day of the target month.
func (r Recurrence) Advance(t time.Time) (time.Time, error) {
	var next time.Time
	switch r {
	case Daily:
		next = t.AddDate(0, 0, 1)
	case Weekly:
		next = t.AddDate(0, 0, 7)
	case Monthly:
		next = addMonthClamped(t)
	default:
		return t, fmt.Errorf("advance %q: %w", r, ErrCalendarOverflow)
	}

	if next.Year() > maxYear || !next.After(t) {
		return t, fmt.Errorf("advance %s from %s: %w", r, t.Format(time.RFC3339), ErrCalendarOverflow)
	}
	return next, nil
}

func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), min(day, lastDay),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Grant is a recurring token grant rule.
type Grant struct {
	ID              string
	TokenCount      int
	ScheduledDate   time.Time
	Title           string
	Notes           string
	Recurrence      Recurrence
	IsActive        bool
	CreatedDate     time.Time
	MaxWalletTokens *int
}

// Validate checks the user-editable fields.
func (g Grant) Validate() error {
	if g.TokenCount <= 0 {
		return fmt.Errorf("grant token count must be positive, got %d", g.TokenCount)
	}
	if g.ScheduledDate.IsZero() {
		return fmt.Errorf("grant scheduled date is required")
	}
	if _, err := ParseRecurrence(string(g.Recurrence)); err != nil {
		return err
	}
	if g.MaxWalletTokens != nil && *g.MaxWalletTokens < 0 {
		return fmt.Errorf("grant wallet cap must not be negative, got %d", *g.MaxWalletTokens)
	}
	return nil
}

// NextOccurrence returns the first fire time strictly after now, or nil for
// an inactive grant. A scheduled date already in the future is returned
// unchanged.
func NextOccurrence(g Grant, now time.Time) *time.Time {
	if !g.IsActive {
		return nil
	}

	next := g.ScheduledDate
	for !next.After(now) {
		advanced, err := g.Recurrence.Advance(next)
		if err != nil {
			return nil
		}
		next = advanced
	}
	return &next
}
