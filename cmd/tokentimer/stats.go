package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/tokentimer/internal/format"
	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/spf13/cobra"
)

var (
	statsSessions int
	statsResetYes bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage totals and goal progress",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		st := a.svc.Settings()
		stats := a.svc.Stats()
		display := st.TimeDisplay

		printHeader("USAGE STATISTICS")

		printGoal("Today:     ", stats.TodayMinutes, st.DailyGoalMinutes, stats.DailyProgress, display)
		printGoal("This week: ", stats.WeekMinutes, st.WeeklyGoalMinutes, stats.WeeklyProgress, display)
		printGoal("This month:", stats.MonthMinutes, st.MonthlyGoalMinutes, stats.MonthProgress, display)
		fmt.Println()

		fmt.Printf("Sessions:   %d\n", stats.SessionCount)
		fmt.Printf("Average:    %s\n", format.TotalTime(stats.AverageSession, display))
		if len(stats.Favorites) > 0 {
			fmt.Printf("Favorites:  %s tokens\n", joinInts(stats.Favorites, ", "))
		}
		if len(stats.PeakHours) > 0 {
			hours := make([]string, len(stats.PeakHours))
			for i, h := range stats.PeakHours {
				hours[i] = fmt.Sprintf("%02d:00", h)
			}
			fmt.Printf("Peak hours: %s\n", strings.Join(hours, ", "))
		}

		if statsSessions > 0 {
			sessions := a.svc.Sessions()
			if len(sessions) > statsSessions {
				sessions = sessions[len(sessions)-statsSessions:]
			}
			fmt.Println()
			cyan.Println("Recent sessions")
			for i := len(sessions) - 1; i >= 0; i-- {
				s := sessions[i]
				outcome := "ended early"
				switch {
				case s.WasCompleted:
					outcome = "completed"
				case s.WasInGracePeriod:
					outcome = "refunded"
				}
				fmt.Printf("  %s  %d tokens  %-6s  %s\n",
					s.StartTime.In(a.loc).Format("2006-01-02 15:04"),
					s.OriginalTokens,
					format.TotalTime(s.ActualMinutes, display),
					outcome)
			}
		}

		printFooter()
		return nil
	}),
}

var statsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all usage history",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		if !statsResetYes {
			return fmt.Errorf("refusing to clear usage history without --yes")
		}
		a.svc.ResetStats(ctx)
		green.Println("Usage history cleared")
		return nil
	}),
}

func init() {
	statsCmd.Flags().IntVar(&statsSessions, "sessions", 5, "Number of recent sessions to list")
	statsResetCmd.Flags().BoolVar(&statsResetYes, "yes", false, "Confirm the reset")

	statsCmd.AddCommand(statsResetCmd)
	rootCmd.AddCommand(statsCmd)
}

// printGoal prints a usage total and, when a goal is set, its progress
func printGoal(label string, minutes int, goal *int, progress float64, display settings.TimeDisplay) {
	fmt.Printf("%s %s", label, format.TotalTime(minutes, display))
	if goal == nil || *goal <= 0 {
		fmt.Println()
		return
	}

	c := yellow
	if progress >= 1 {
		c = color.New(color.FgGreen)
	}
	c.Printf("  %3.0f%% of %s\n", progress*100, format.TotalTime(*goal, display))
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, sep)
}
