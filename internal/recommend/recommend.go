package recommend

import (
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/goodtune/tokentimer/internal/wallet"
)

// MaxRecommendations caps the returned list.
const MaxRecommendations = 3

// Type identifies which signal produced a recommendation.
type Type string

const (
	TimeOptimal    Type = "time_optimal"
	LengthBased    Type = "length_based"
	GoalBased      Type = "goal_based"
	RecentActivity Type = "recent_activity"
)

// Recommendation is a suggested session size.
type Recommendation struct {
	Type            Type   `json:"type"`
	SuggestedTokens int    `json:"suggested_tokens"`
	Message         string `json:"message"`
	Reason          string `json:"reason"`
}

// Usage is the analytics view the recommender reads.
type Usage interface {
	Location() *time.Location
	PeakUsageHours() []int
	FavoriteSessionLengths() []int
	AverageSessionLength() int
	TodayMinutes(now time.Time) int
	RecentAverageTokens() (int, bool)
}

// Recommend builds at most MaxRecommendations suggestions in priority order:
// time-optimal, length-based, goal-based, recent activity.
func Recommend(u Usage, s settings.Settings, balance int, now time.Time) []Recommendation {
	var recs []Recommendation

	hour := now.In(u.Location()).Hour()
	for _, peak := range u.PeakUsageHours() {
		if peak != hour {
			continue
		}
		favorite := 2
		if favs := u.FavoriteSessionLengths(); len(favs) > 0 {
			favorite = favs[0]
		}
		recs = append(recs, Recommendation{
			Type:            TimeOptimal,
			SuggestedTokens: max(favorite, 3),
			Message:         "Peak usage time detected! Consider a longer session.",
			Reason:          "Based on your usage patterns, you're most active around this time.",
		})
		break
	}

	if avg := u.AverageSessionLength(); avg > 0 {
		recs = append(recs, Recommendation{
			Type:            LengthBased,
			SuggestedTokens: avg / wallet.MinutesPerToken,
			Message:         "Your usual session length",
			Reason:          fmt.Sprintf("Based on your recent %d-minute average sessions.", avg),
		})
	}

	if goal := s.DailyGoalMinutes; goal != nil && *goal > 0 {
		remaining := *goal - u.TodayMinutes(now)
		// An empty wallet cannot fund a session, so no goal entry is offered.
		if tokens := min(remaining/wallet.MinutesPerToken+1, max(balance, 0)); remaining > 0 && tokens > 0 {
			recs = append(recs, Recommendation{
				Type:            GoalBased,
				SuggestedTokens: tokens,
				Message:         "Stay on track with your daily goal",
				Reason:          fmt.Sprintf("You need %d more minutes to reach your daily goal.", remaining),
			})
		}
	}

	if avg, ok := u.RecentAverageTokens(); ok {
		recs = append(recs, Recommendation{
			Type:            RecentActivity,
			SuggestedTokens: avg,
			Message:         "Based on your recent activity",
			Reason:          fmt.Sprintf("Your last 5 sessions averaged %d tokens.", avg),
		})
	}

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}
