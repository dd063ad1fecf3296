package service

import (
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/schedule"
	"github.com/goodtune/tokentimer/internal/settings"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/goodtune/tokentimer/internal/timer"
	"github.com/goodtune/tokentimer/internal/usage"
	"github.com/goodtune/tokentimer/internal/wallet"
)

func toJournalEntry(e wallet.Entry) storage.JournalEntry {
	kind := storage.EntryCredit
	if e.Kind == wallet.EntryDebit {
		kind = storage.EntryDebit
	}
	return storage.JournalEntry{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Kind:      kind,
		Reason:    string(e.Reason),
		Amount:    e.Amount,
		Balance:   e.Balance,
	}
}

func fromJournalEntry(e storage.JournalEntry) wallet.Entry {
	kind := wallet.EntryCredit
	if e.Kind == storage.EntryDebit {
		kind = wallet.EntryDebit
	}
	return wallet.Entry{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Kind:      kind,
		Reason:    wallet.Reason(e.Reason),
		Amount:    e.Amount,
		Balance:   e.Balance,
	}
}

func toStoredSession(s timer.Session, lastActivity time.Time) storage.TimerSession {
	return storage.TimerSession{
		ID:                 s.ID,
		OriginalTokens:     s.OriginalTokens,
		TotalMinutes:       s.TotalMinutes,
		StartTime:          s.StartTime,
		IsActive:           s.IsActive,
		IsPaused:           s.IsPaused,
		PausedAt:           s.PausedAt,
		TotalPausedSeconds: s.TotalPausedDuration.Seconds(),
		LastActivity:       lastActivity,
	}
}

func fromStoredSession(s storage.TimerSession) *timer.Session {
	return &timer.Session{
		ID:                  s.ID,
		OriginalTokens:      s.OriginalTokens,
		TotalMinutes:        s.TotalMinutes,
		StartTime:           s.StartTime,
		IsActive:            s.IsActive,
		IsPaused:            s.IsPaused,
		PausedAt:            s.PausedAt,
		TotalPausedDuration: time.Duration(s.TotalPausedSeconds * float64(time.Second)),
	}
}

func toStoredUsage(d usage.Data) storage.UsageLedger {
	ledger := storage.UsageLedger{
		DailyMinutes: d.DailyMinutes,
		Sessions:     make([]storage.SessionRecord, 0, len(d.Sessions)),
	}
	for _, r := range d.Sessions {
		ledger.Sessions = append(ledger.Sessions, storage.SessionRecord(r))
	}
	return ledger
}

func fromStoredUsage(l storage.UsageLedger) usage.Data {
	data := usage.Data{
		DailyMinutes: l.DailyMinutes,
		Sessions:     make([]usage.SessionRecord, 0, len(l.Sessions)),
	}
	for _, r := range l.Sessions {
		data.Sessions = append(data.Sessions, usage.SessionRecord(r))
	}
	return data
}

func toStoredGrant(g schedule.Grant, position int) storage.ScheduledGrant {
	return storage.ScheduledGrant{
		ID:              g.ID,
		TokenCount:      g.TokenCount,
		ScheduledDate:   g.ScheduledDate,
		Title:           g.Title,
		Notes:           g.Notes,
		Recurrence:      string(g.Recurrence),
		IsActive:        g.IsActive,
		CreatedDate:     g.CreatedDate,
		MaxWalletTokens: g.MaxWalletTokens,
		Position:        position,
	}
}

func fromStoredGrant(g storage.ScheduledGrant) (schedule.Grant, error) {
	recurrence, err := schedule.ParseRecurrence(g.Recurrence)
	if err != nil {
		return schedule.Grant{}, fmt.Errorf("grant %s: %w", g.ID, err)
	}
	return schedule.Grant{
		ID:              g.ID,
		TokenCount:      g.TokenCount,
		ScheduledDate:   g.ScheduledDate,
		Title:           g.Title,
		Notes:           g.Notes,
		Recurrence:      recurrence,
		IsActive:        g.IsActive,
		CreatedDate:     g.CreatedDate,
		MaxWalletTokens: g.MaxWalletTokens,
	}, nil
}

func toStoredSettings(s settings.Settings) storage.Settings {
	return storage.Settings{
		GracePeriodMinutes: s.GracePeriodMinutes,
		AutoPauseEnabled:   s.AutoPauseEnabled,
		AutoPauseMinutes:   s.AutoPauseMinutes,
		DailyGoalMinutes:   s.DailyGoalMinutes,
		WeeklyGoalMinutes:  s.WeeklyGoalMinutes,
		MonthlyGoalMinutes: s.MonthlyGoalMinutes,
		MaxWalletTokens:    s.MaxWalletTokens,
		TimeDisplay:        string(s.TimeDisplay),
		WeekStart:          int(s.WeekStart),
	}
}

func fromStoredSettings(s storage.Settings) (settings.Settings, error) {
	display, err := settings.ParseTimeDisplay(s.TimeDisplay)
	if err != nil {
		return settings.Settings{}, err
	}
	out := settings.Settings{
		GracePeriodMinutes: s.GracePeriodMinutes,
		AutoPauseEnabled:   s.AutoPauseEnabled,
		AutoPauseMinutes:   s.AutoPauseMinutes,
		DailyGoalMinutes:   s.DailyGoalMinutes,
		WeeklyGoalMinutes:  s.WeeklyGoalMinutes,
		MonthlyGoalMinutes: s.MonthlyGoalMinutes,
		MaxWalletTokens:    s.MaxWalletTokens,
		TimeDisplay:        display,
		WeekStart:          time.Weekday(s.WeekStart),
	}
	return out, out.Validate()
}
