package recommend

import (
	"testing"
	"time"

	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/goodtune/tokentimer/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 7, 22, 20, 30, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func ledgerWith(tokens []int, hour int) *usage.Ledger {
	l := usage.NewLedger(usage.Data{}, time.UTC)
	for _, n := range tokens {
		start := time.Date(2025, 7, 1, hour, 0, 0, 0, time.UTC)
		l.RecordSession(usage.SessionRecord{
			StartTime:      start,
			EndTime:        start.Add(time.Duration(n*15) * time.Minute),
			OriginalTokens: n,
			ActualMinutes:  n * 15,
			WasCompleted:   true,
		})
	}
	return l
}

func types(recs []Recommendation) []Type {
	var out []Type
	for _, r := range recs {
		out = append(out, r.Type)
	}
	return out
}

func TestRecommendEmptyHistory(t *testing.T) {
	l := usage.NewLedger(usage.Data{}, time.UTC)
	assert.Empty(t, Recommend(l, settings.Defaults(), 5, now))
}

func TestRecommendPriorityAndCap(t *testing.T) {
	l := ledgerWith([]int{4, 4, 2, 4, 4}, 20)
	s := settings.Defaults()
	s.DailyGoalMinutes = intPtr(60)

	recs := Recommend(l, s, 10, now)

	require.Len(t, recs, MaxRecommendations)
	assert.Equal(t, []Type{TimeOptimal, LengthBased, GoalBased}, types(recs))
	assert.Equal(t, 4, recs[0].SuggestedTokens)
	// (60+60+30+60+60)/5 = 54 minutes -> 3 tokens.
	assert.Equal(t, 3, recs[1].SuggestedTokens)
	assert.Equal(t, 60/15+1, recs[2].SuggestedTokens)
}

func TestRecommendRecentActivityFillsGap(t *testing.T) {
	// Peak hour is 9, not 20, so the time-optimal signal is absent.
	l := ledgerWith([]int{1, 1, 2, 2, 2}, 9)

	recs := Recommend(l, settings.Defaults(), 10, now)

	assert.Equal(t, []Type{LengthBased, RecentActivity}, types(recs))
	assert.Equal(t, (1+1+2+2+2)/5, recs[1].SuggestedTokens)
}

func TestTimeOptimalMinimum(t *testing.T) {
	l := ledgerWith([]int{1}, 20)

	recs := Recommend(l, settings.Defaults(), 10, now)

	require.NotEmpty(t, recs)
	assert.Equal(t, TimeOptimal, recs[0].Type)
	assert.Equal(t, 3, recs[0].SuggestedTokens)
}

func TestGoalBasedClampedToBalance(t *testing.T) {
	l := usage.NewLedger(usage.Data{}, time.UTC)
	l.RecordUsage(10, now)
	s := settings.Defaults()
	s.DailyGoalMinutes = intPtr(120)

	recs := Recommend(l, s, 2, now)

	require.Len(t, recs, 1)
	assert.Equal(t, GoalBased, recs[0].Type)
	assert.Equal(t, 2, recs[0].SuggestedTokens)

	// Goal met: no suggestion.
	l.RecordUsage(200, now)
	assert.Empty(t, Recommend(l, s, 2, now))
}

func TestGoalBasedSkippedWithEmptyWallet(t *testing.T) {
	l := ledgerWith([]int{2, 2}, 9)
	s := settings.Defaults()
	s.DailyGoalMinutes = intPtr(120)

	recs := Recommend(l, s, 0, now)

	assert.NotContains(t, types(recs), GoalBased)
	for _, r := range recs {
		assert.Positive(t, r.SuggestedTokens, "%s suggestion", r.Type)
	}
	assert.Empty(t, Recommend(usage.NewLedger(usage.Data{}, time.UTC), s, 0, now))
}

func TestCacheInvalidatesOnRevision(t *testing.T) {
	c, err := NewCache(8)
	require.NoError(t, err)
	l := ledgerWith([]int{2, 2}, 9)
	s := settings.Defaults()

	first := c.Get(l, s, 5, now)
	second := c.Get(l, s, 5, now.Add(time.Minute))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())

	l.RecordSession(usage.SessionRecord{StartTime: now, OriginalTokens: 8, ActualMinutes: 120})
	third := c.Get(l, s, 5, now)
	assert.Equal(t, 2, c.Len())
	assert.NotEqual(t, first[0].SuggestedTokens, third[len(third)-1].SuggestedTokens)

	c.Purge()
	assert.Zero(t, c.Len())
}
