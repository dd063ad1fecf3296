package main

import (
	"context"
	"fmt"

	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change user settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app) error {
		printSettings(a.svc.Settings())
		return nil
	}),
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	Long: `Change one or more settings. Only the flags given are applied. Goals and
the wallet cap accept 0 to clear them.`,
	Example: `  tokentimer settings set --grace-period 3 --daily-goal 120
  tokentimer settings set --auto-pause=false --time-display minutesOnly`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			st, err := applySettingsFlags(cmd, a.svc.Settings())
			if err != nil {
				return err
			}
			if err := a.svc.UpdateSettings(ctx, st); err != nil {
				return err
			}
			green.Println("Settings updated")
			printSettings(st)
			return nil
		})(cmd, args)
	},
}

func init() {
	f := settingsSetCmd.Flags()
	f.Int("grace-period", 0, "Minutes after start during which ending refunds everything")
	f.Bool("auto-pause", true, "Pause the timer after inactivity")
	f.Int("auto-pause-minutes", 0, "Inactivity minutes before auto-pause")
	f.Int("daily-goal", 0, "Daily usage goal in minutes (0 to clear)")
	f.Int("weekly-goal", 0, "Weekly usage goal in minutes (0 to clear)")
	f.Int("monthly-goal", 0, "Monthly usage goal in minutes (0 to clear)")
	f.Int("max-wallet", 0, "Wallet cap for capped credits (0 to clear)")
	f.String("time-display", "", "minutesOnly or hoursMinutes")
	f.String("week-start", "", "First day of the week")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

// applySettingsFlags overlays the changed flags onto st
func applySettingsFlags(cmd *cobra.Command, st settings.Settings) (settings.Settings, error) {
	f := cmd.Flags()

	ints := map[string]*int{
		"grace-period":       &st.GracePeriodMinutes,
		"auto-pause-minutes": &st.AutoPauseMinutes,
	}
	for name, dst := range ints {
		if f.Changed(name) {
			v, err := f.GetInt(name)
			if err != nil {
				return st, err
			}
			*dst = v
		}
	}

	limits := map[string]**int{
		"daily-goal":   &st.DailyGoalMinutes,
		"weekly-goal":  &st.WeeklyGoalMinutes,
		"monthly-goal": &st.MonthlyGoalMinutes,
		"max-wallet":   &st.MaxWalletTokens,
	}
	for name, dst := range limits {
		if f.Changed(name) {
			v, err := f.GetInt(name)
			if err != nil {
				return st, err
			}
			*dst = nil
			if v > 0 {
				*dst = settings.Limit(v)
			}
		}
	}

	if f.Changed("auto-pause") {
		v, err := f.GetBool("auto-pause")
		if err != nil {
			return st, err
		}
		st.AutoPauseEnabled = v
	}
	if f.Changed("time-display") {
		v, _ := f.GetString("time-display")
		display, err := settings.ParseTimeDisplay(v)
		if err != nil {
			return st, err
		}
		st.TimeDisplay = display
	}
	if f.Changed("week-start") {
		v, _ := f.GetString("week-start")
		day, err := config.ParseWeekday(v)
		if err != nil {
			return st, err
		}
		st.WeekStart = day
	}

	return st, nil
}

func printSettings(st settings.Settings) {
	printHeader("SETTINGS")

	fmt.Printf("Grace period:   %d minutes\n", st.GracePeriodMinutes)
	if st.AutoPauseEnabled {
		fmt.Printf("Auto-pause:     after %d minutes\n", st.AutoPauseMinutes)
	} else {
		fmt.Println("Auto-pause:     off")
	}
	fmt.Printf("Daily goal:     %s\n", limitString(st.DailyGoalMinutes, "minutes"))
	fmt.Printf("Weekly goal:    %s\n", limitString(st.WeeklyGoalMinutes, "minutes"))
	fmt.Printf("Monthly goal:   %s\n", limitString(st.MonthlyGoalMinutes, "minutes"))
	fmt.Printf("Wallet cap:     %s\n", limitString(st.MaxWalletTokens, "tokens"))
	fmt.Printf("Time display:   %s\n", st.TimeDisplay)
	fmt.Printf("Week starts:    %s\n", st.WeekStart)

	printFooter()
}

func limitString(v *int, unit string) string {
	if v == nil || *v <= 0 {
		return "none"
	}
	return fmt.Sprintf("%d %s", *v, unit)
}
