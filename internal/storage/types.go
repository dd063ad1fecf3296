package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntryKind is the direction of a journal entry.
type EntryKind string

const (
	EntryCredit EntryKind = "CREDIT"
	EntryDebit  EntryKind = "DEBIT"
)

// UnmarshalJSON implements json.Unmarshaler to normalize kind to uppercase.
func (k *EntryKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := EntryKind(strings.ToUpper(s))
	switch normalized {
	case EntryCredit, EntryDebit:
		*k = normalized
		return nil
	default:
		return fmt.Errorf("invalid entry kind: %s (must be CREDIT or DEBIT)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (k EntryKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// Wallet is the persisted balance.
type Wallet struct {
	TotalTokens int       `json:"total_tokens"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JournalEntry records one balance change.
type JournalEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EntryKind `json:"kind"`
	Reason    string    `json:"reason"`
	Amount    int       `json:"amount"`
	Balance   int       `json:"balance"`
}

// TimerSession is the persisted live session.
type TimerSession struct {
	ID                 string     `json:"id"`
	OriginalTokens     int        `json:"original_tokens"`
	TotalMinutes       int        `json:"total_minutes"`
	StartTime          time.Time  `json:"start_time"`
	IsActive           bool       `json:"is_active"`
	IsPaused           bool       `json:"is_paused"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	TotalPausedSeconds float64    `json:"total_paused_seconds"`
	LastActivity       time.Time  `json:"last_activity"`
}

// SessionRecord is a finished session in the usage history.
type SessionRecord struct {
	ID               string    `json:"id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	OriginalTokens   int       `json:"original_tokens"`
	ActualMinutes    int       `json:"actual_minutes"`
	WasCompleted     bool      `json:"was_completed"`
	WasInGracePeriod bool      `json:"was_in_grace_period"`
}

// UsageLedger holds per-day minute buckets and the session history in
// insertion order.
type UsageLedger struct {
	DailyMinutes map[string]int  `json:"daily_minutes"`
	Sessions     []SessionRecord `json:"sessions"`
}

// ScheduledGrant is a recurring token grant rule.
type ScheduledGrant struct {
	ID              string    `json:"id"`
	TokenCount      int       `json:"token_count"`
	ScheduledDate   time.Time `json:"scheduled_date"`
	Title           string    `json:"title"`
	Notes           string    `json:"notes,omitempty"`
	Recurrence      string    `json:"recurrence"`
	IsActive        bool      `json:"is_active"`
	CreatedDate     time.Time `json:"created_date"`
	MaxWalletTokens *int      `json:"max_wallet_tokens,omitempty"`
	Position        int       `json:"position"`
}

// Settings is the persisted user preference snapshot.
type Settings struct {
	GracePeriodMinutes int    `json:"grace_period_minutes"`
	AutoPauseEnabled   bool   `json:"auto_pause_enabled"`
	AutoPauseMinutes   int    `json:"auto_pause_minutes"`
	DailyGoalMinutes   *int   `json:"daily_goal_minutes,omitempty"`
	WeeklyGoalMinutes  *int   `json:"weekly_goal_minutes,omitempty"`
	MonthlyGoalMinutes *int   `json:"monthly_goal_minutes,omitempty"`
	MaxWalletTokens    *int   `json:"max_wallet_tokens,omitempty"`
	TimeDisplay        string `json:"time_display"`
	WeekStart          int    `json:"week_start"`
}
