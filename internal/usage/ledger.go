package usage

import (
	"maps"
	"sort"
	"time"
)

// Ledger holds per-day usage minutes and the bounded session history.
// Not safe for concurrent use; the service serializes access.
type Ledger struct {
	dailyMinutes map[string]int
	sessions     []SessionRecord
	loc          *time.Location
	revision     uint64
}

// NewLedger restores a ledger from persisted data. Day keys and hours are
// computed in loc.
func NewLedger(data Data, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	l := &Ledger{
		dailyMinutes: make(map[string]int, len(data.DailyMinutes)),
		loc:          loc,
	}
	maps.Copy(l.dailyMinutes, data.DailyMinutes)
	for _, r := range data.Sessions {
		l.RecordSession(r)
	}
	l.revision = 0
	return l
}

// Snapshot returns a copy suitable for persistence.
func (l *Ledger) Snapshot() Data {
	data := Data{
		DailyMinutes: make(map[string]int, len(l.dailyMinutes)),
		Sessions:     append([]SessionRecord(nil), l.sessions...),
	}
	maps.Copy(data.DailyMinutes, l.dailyMinutes)
	return data
}

// Revision increases on every mutation. Callers use it as a cache key.
func (l *Ledger) Revision() uint64 {
	return l.revision
}

// Location returns the reference timezone for day keys.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// DayKey returns the bucket key for t in the ledger's timezone.
func (l *Ledger) DayKey(t time.Time) string {
	return t.In(l.loc).Format(DayKeyFormat)
}

// RecordUsage adds minutes to the bucket for day.
func (l *Ledger) RecordUsage(minutes int, day time.Time) {
	if minutes <= 0 {
		return
	}
	l.dailyMinutes[l.DayKey(day)] += minutes
	l.revision++
}

// RecordSession appends a record, evicting the oldest beyond MaxSessions.
func (l *Ledger) RecordSession(r SessionRecord) {
	l.sessions = append(l.sessions, r)
	if over := len(l.sessions) - MaxSessions; over > 0 {
		l.sessions = append([]SessionRecord(nil), l.sessions[over:]...)
	}
	l.revision++
}

// Sessions returns a copy of the history, oldest first.
func (l *Ledger) Sessions() []SessionRecord {
	return append([]SessionRecord(nil), l.sessions...)
}

// MinutesOn returns the bucket for the day containing t.
func (l *Ledger) MinutesOn(t time.Time) int {
	return l.dailyMinutes[l.DayKey(t)]
}

// TodayMinutes is MinutesOn(now).
func (l *Ledger) TodayMinutes(now time.Time) int {
	return l.MinutesOn(now)
}

// TotalMinutesThisWeek sums the seven buckets of the calendar week
// containing now, starting on weekStart.
func (l *Ledger) TotalMinutesThisWeek(now time.Time, weekStart time.Weekday) int {
	start := WeekStart(now.In(l.loc), weekStart)
	total := 0
	for i := range 7 {
		total += l.MinutesOn(start.AddDate(0, 0, i))
	}
	return total
}

// MonthMinutes sums the buckets of the calendar month containing now.
func (l *Ledger) MonthMinutes(now time.Time) int {
	local := now.In(l.loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, l.loc)
	total := 0
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		total += l.MinutesOn(d)
	}
	return total
}

// AverageSessionLength is the integer mean of ActualMinutes over the last 20
// records, or 0 without history.
func (l *Ledger) AverageSessionLength() int {
	recent := l.tail(averageWindow)
	if len(recent) == 0 {
		return 0
	}
	total := 0
	for _, r := range recent {
		total += r.ActualMinutes
	}
	return total / len(recent)
}

// FavoriteSessionLengths returns up to three OriginalTokens values from the
// last 50 records, most frequent first. Ties keep first-seen order.
func (l *Ledger) FavoriteSessionLengths() []int {
	return topThree(l.tail(patternWindow), func(r SessionRecord) int {
		return r.OriginalTokens
	})
}

// PeakUsageHours returns up to three local start hours from the last 50
// records, most frequent first. Ties keep first-seen order.
func (l *Ledger) PeakUsageHours() []int {
	return topThree(l.tail(patternWindow), func(r SessionRecord) int {
		return r.StartTime.In(l.loc).Hour()
	})
}

// RecentAverageTokens averages OriginalTokens over the last five records.
// ok is false with fewer than five.
func (l *Ledger) RecentAverageTokens() (avg int, ok bool) {
	if len(l.sessions) < recentWindow {
		return 0, false
	}
	total := 0
	for _, r := range l.tail(recentWindow) {
		total += r.OriginalTokens
	}
	return total / recentWindow, true
}

// Prune drops day buckets strictly before cutoff's day and returns how many
// were removed. Session history is bounded separately.
func (l *Ledger) Prune(cutoff time.Time) int {
	key := l.DayKey(cutoff)
	removed := 0
	for day := range l.dailyMinutes {
		if day < key {
			delete(l.dailyMinutes, day)
			removed++
		}
	}
	if removed > 0 {
		l.revision++
	}
	return removed
}

// Reset clears all usage history.
func (l *Ledger) Reset() {
	l.dailyMinutes = make(map[string]int)
	l.sessions = nil
	l.revision++
}

func (l *Ledger) tail(n int) []SessionRecord {
	if len(l.sessions) <= n {
		return l.sessions
	}
	return l.sessions[len(l.sessions)-n:]
}

func topThree(records []SessionRecord, key func(SessionRecord) int) []int {
	counts := make(map[int]int)
	var order []int
	for _, r := range records {
		k := key(r)
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > 3 {
		order = order[:3]
	}
	return order
}

// WeekStart returns midnight of the first day of t's week.
func WeekStart(t time.Time, first time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// GoalProgress returns used/goal clamped to [0, 1]. A nil or non-positive
// goal has no progress.
func GoalProgress(used int, goal *int) float64 {
	if goal == nil || *goal <= 0 {
		return 0
	}
	p := float64(used) / float64(*goal)
	return min(max(p, 0), 1)
}

// Summarize computes Stats against the optional goals.
func (l *Ledger) Summarize(now time.Time, weekStart time.Weekday, daily, weekly, monthly *int) Stats {
	s := Stats{
		TodayMinutes:   l.TodayMinutes(now),
		WeekMinutes:    l.TotalMinutesThisWeek(now, weekStart),
		MonthMinutes:   l.MonthMinutes(now),
		AverageSession: l.AverageSessionLength(),
		Favorites:      l.FavoriteSessionLengths(),
		PeakHours:      l.PeakUsageHours(),
		SessionCount:   len(l.sessions),
	}
	s.DailyProgress = GoalProgress(s.TodayMinutes, daily)
	s.WeeklyProgress = GoalProgress(s.WeekMinutes, weekly)
	s.MonthProgress = GoalProgress(s.MonthMinutes, monthly)
	return s
}
