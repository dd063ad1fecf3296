// Package format renders minute totals and countdowns for people.
package format

import (
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/settings"
)

// TotalTime renders a minute total, e.g. "95 minutes" or "1h 35m".
func TotalTime(minutes int, display settings.TimeDisplay) string {
	if display == settings.MinutesOnly {
		return fmt.Sprintf("%d minutes", minutes)
	}
	if h := minutes / 60; h > 0 {
		return fmt.Sprintf("%dh %dm", h, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// Remaining renders a reminder body such as "1h 5m remaining".
func Remaining(minutes int) string {
	return TotalTime(minutes, settings.HoursMinutes) + " remaining"
}

// Countdown renders a timer readout. Negative durations show as zero.
func Countdown(d time.Duration, display settings.TimeDisplay) string {
	secs := max(0, int(d/time.Second))
	if display == settings.MinutesOnly {
		return fmt.Sprintf("%d:%02d", secs/60, secs%60)
	}
	if h := secs / 3600; h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, (secs%3600)/60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
