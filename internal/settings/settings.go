package settings

import (
	"fmt"
	"strings"
	"time"
)

// TimeDisplay selects how durations are rendered.
type TimeDisplay string

const (
	MinutesOnly  TimeDisplay = "minutesOnly"
	HoursMinutes TimeDisplay = "hoursMinutes"
)

// ParseTimeDisplay accepts either display name, case-insensitively.
func ParseTimeDisplay(s string) (TimeDisplay, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minutesonly", "minutes":
		return MinutesOnly, nil
	case "hoursminutes", "hours":
		return HoursMinutes, nil
	default:
		return "", fmt.Errorf("invalid time display: %s (must be minutesOnly or hoursMinutes)", s)
	}
}

// Settings is the user preference snapshot read by the engines. Nil limits
// and goals mean "none".
type Settings struct {
	GracePeriodMinutes int          `json:"grace_period_minutes" mapstructure:"grace_period_minutes"`
	AutoPauseEnabled   bool         `json:"auto_pause_enabled" mapstructure:"auto_pause_enabled"`
	AutoPauseMinutes   int          `json:"auto_pause_minutes" mapstructure:"auto_pause_minutes"`
	DailyGoalMinutes   *int         `json:"daily_goal_minutes,omitempty" mapstructure:"daily_goal_minutes"`
	WeeklyGoalMinutes  *int         `json:"weekly_goal_minutes,omitempty" mapstructure:"weekly_goal_minutes"`
	MonthlyGoalMinutes *int         `json:"monthly_goal_minutes,omitempty" mapstructure:"monthly_goal_minutes"`
	MaxWalletTokens    *int         `json:"max_wallet_tokens,omitempty" mapstructure:"max_wallet_tokens"`
	TimeDisplay        TimeDisplay  `json:"time_display" mapstructure:"time_display"`
	WeekStart          time.Weekday `json:"week_start" mapstructure:"week_start"`
}

// Defaults returns the settings used before anything is saved.
func Defaults() Settings {
	return Settings{
		GracePeriodMinutes: 2,
		AutoPauseEnabled:   true,
		AutoPauseMinutes:   10,
		TimeDisplay:        HoursMinutes,
		WeekStart:          time.Sunday,
	}
}

// Validate rejects values the engines cannot use.
func (s Settings) Validate() error {
	if s.GracePeriodMinutes < 0 {
		return fmt.Errorf("grace period must not be negative, got %d", s.GracePeriodMinutes)
	}
	if s.AutoPauseEnabled && s.AutoPauseMinutes <= 0 {
		return fmt.Errorf("auto-pause minutes must be positive when enabled, got %d", s.AutoPauseMinutes)
	}
	for name, v := range map[string]*int{
		"daily goal":   s.DailyGoalMinutes,
		"weekly goal":  s.WeeklyGoalMinutes,
		"monthly goal": s.MonthlyGoalMinutes,
		"wallet cap":   s.MaxWalletTokens,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, *v)
		}
	}
	if _, err := ParseTimeDisplay(string(s.TimeDisplay)); err != nil {
		return err
	}
	if s.WeekStart < time.Sunday || s.WeekStart > time.Saturday {
		return fmt.Errorf("invalid week start: %d", s.WeekStart)
	}
	return nil
}

// Limit turns the legacy "0 means none" encoding into an optional value.
func Limit(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
