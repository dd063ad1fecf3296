package usage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i, tokens int, start time.Time) SessionRecord {
	return SessionRecord{
		ID:             fmt.Sprintf("s%d", i),
		StartTime:      start,
		EndTime:        start.Add(time.Duration(tokens*15) * time.Minute),
		OriginalTokens: tokens,
		ActualMinutes:  tokens * 15,
		WasCompleted:   true,
	}
}

func TestRecordSessionEvictsOldest(t *testing.T) {
	l := NewLedger(Data{}, time.UTC)
	start := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	for i := range 105 {
		l.RecordSession(record(i, 1, start))
	}

	sessions := l.Sessions()
	require.Len(t, sessions, MaxSessions)
	for i, r := range sessions {
		assert.Equal(t, fmt.Sprintf("s%d", i+5), r.ID)
	}
}

func TestWeekAndMonthTotals(t *testing.T) {
	l := NewLedger(Data{}, time.UTC)
	// Wednesday 2025-07-23.
	now := time.Date(2025, 7, 23, 12, 0, 0, 0, time.UTC)

	l.RecordUsage(10, time.Date(2025, 7, 19, 9, 0, 0, 0, time.UTC)) // Saturday before
	l.RecordUsage(20, time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC)) // Sunday
	l.RecordUsage(30, time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC)) // Monday
	l.RecordUsage(40, now)
	l.RecordUsage(50, time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 90, l.TotalMinutesThisWeek(now, time.Sunday))
	assert.Equal(t, 70, l.TotalMinutesThisWeek(now, time.Monday))
	assert.Equal(t, 100, l.MonthMinutes(now))
	assert.Equal(t, 40, l.TodayMinutes(now))
}

func TestDayKeyUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	l := NewLedger(Data{}, loc)

	// 02:00 UTC on the 22nd is still the 21st five hours west.
	l.RecordUsage(15, time.Date(2025, 7, 22, 2, 0, 0, 0, time.UTC))

	assert.Equal(t, map[string]int{"2025-07-21": 15}, l.Snapshot().DailyMinutes)
}

func TestAggregates(t *testing.T) {
	l := NewLedger(Data{}, time.UTC)
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, l.AverageSessionLength())
	_, ok := l.RecentAverageTokens()
	assert.False(t, ok)

	// Tokens 2,2,2,4,4,1 at hours 20,20,20,9,9,7.
	for i, s := range []struct{ tokens, hour int }{
		{2, 20}, {4, 9}, {2, 20}, {1, 7}, {4, 9}, {2, 20},
	} {
		l.RecordSession(record(i, s.tokens, base.Add(time.Duration(s.hour)*time.Hour)))
	}

	assert.Equal(t, (30+60+30+15+60+30)/6, l.AverageSessionLength())
	assert.Equal(t, []int{2, 4, 1}, l.FavoriteSessionLengths())
	assert.Equal(t, []int{20, 9, 7}, l.PeakUsageHours())

	avg, ok := l.RecentAverageTokens()
	require.True(t, ok)
	assert.Equal(t, (4+2+1+4+2)/5, avg)
}

func TestTopThreeTiesKeepFirstSeenOrder(t *testing.T) {
	l := NewLedger(Data{}, time.UTC)
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for i, tokens := range []int{5, 3, 1, 8} {
		l.RecordSession(record(i, tokens, base))
	}

	assert.Equal(t, []int{5, 3, 1}, l.FavoriteSessionLengths())
}

func TestPruneAndReset(t *testing.T) {
	l := NewLedger(Data{DailyMinutes: map[string]int{
		"2025-01-01": 10,
		"2025-03-31": 20,
		"2025-04-01": 30,
	}}, time.UTC)
	rev := l.Revision()

	removed := l.Prune(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, removed)
	assert.Equal(t, map[string]int{"2025-04-01": 30}, l.Snapshot().DailyMinutes)
	assert.Greater(t, l.Revision(), rev)

	l.RecordSession(record(1, 1, time.Now()))
	l.Reset()
	assert.Empty(t, l.Sessions())
	assert.Empty(t, l.Snapshot().DailyMinutes)
}

func TestGoalProgress(t *testing.T) {
	goal := 60
	zero := 0
	tests := []struct {
		name string
		used int
		goal *int
		want float64
	}{
		{"no goal", 30, nil, 0},
		{"zero goal", 30, &zero, 0},
		{"half", 30, &goal, 0.5},
		{"clamped", 90, &goal, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, GoalProgress(tt.used, tt.goal), 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	l := NewLedger(Data{}, time.UTC)
	now := time.Date(2025, 7, 23, 12, 0, 0, 0, time.UTC)
	l.RecordUsage(45, now)
	goal := 90

	s := l.Summarize(now, time.Sunday, &goal, nil, nil)

	assert.Equal(t, 45, s.TodayMinutes)
	assert.Equal(t, 45, s.WeekMinutes)
	assert.InDelta(t, 0.5, s.DailyProgress, 1e-9)
	assert.Zero(t, s.WeeklyProgress)
}
