package usage

import (
	"time"
)

const (
	// MaxSessions is how many session records the ledger retains.
	MaxSessions = 100

	averageWindow = 20
	patternWindow = 50
	recentWindow  = 5

	// DayKeyFormat is the layout of daily bucket keys.
	DayKeyFormat = "2006-01-02"
)

// SessionRecord is the immutable history entry written when a session ends.
type SessionRecord struct {
	ID               string    `json:"id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	OriginalTokens   int       `json:"original_tokens"`
	ActualMinutes    int       `json:"actual_minutes"`
	WasCompleted     bool      `json:"was_completed"`
	WasInGracePeriod bool      `json:"was_in_grace_period"`
}

// Data is the persisted form of the ledger.
type Data struct {
	DailyMinutes map[string]int  `json:"daily_minutes"`
	Sessions     []SessionRecord `json:"sessions"`
}

// Stats is a point-in-time summary of usage against goals.
type Stats struct {
	TodayMinutes   int
	WeekMinutes    int
	MonthMinutes   int
	AverageSession int
	Favorites      []int
	PeakHours      []int
	SessionCount   int
	DailyProgress  float64
	WeeklyProgress float64
	MonthProgress  float64
}
