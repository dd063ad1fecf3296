package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/rs/zerolog"
)

func intPtr(v int) *int { return &v }

var now = time.Date(2025, 7, 22, 8, 0, 0, 0, time.UTC)

func TestProcessDailyCatchUp(t *testing.T) {
	// Fires at 09:00 each day; three of them are behind 08:00 today.
	g := Grant{
		ID:            "daily",
		TokenCount:    2,
		ScheduledDate: time.Date(2025, 7, 19, 9, 0, 0, 0, time.UTC),
		Recurrence:    Daily,
		IsActive:      true,
	}
	s := NewScheduler([]Grant{g}, zerolog.Nop())
	w := wallet.NewLedger(0)

	result := s.Process(now, w)

	if result.Due != 6 || result.Credited != 6 {
		t.Fatalf("expected 6 due and credited, got %+v", result)
	}
	if w.Balance() != 6 {
		t.Fatalf("expected wallet 6, got %d", w.Balance())
	}
	updated, _ := s.Get("daily")
	want := time.Date(2025, 7, 22, 9, 0, 0, 0, time.UTC)
	if !updated.ScheduledDate.Equal(want) {
		t.Errorf("expected next fire %v, got %v", want, updated.ScheduledDate)
	}
	if !updated.ScheduledDate.After(now) {
		t.Error("scheduled date must move past now")
	}

	// A second pass in the same instant is a no-op.
	if again := s.Process(now, w); len(again.Changed) != 0 || w.Balance() != 6 {
		t.Errorf("expected idempotent second pass, got %+v balance=%d", again, w.Balance())
	}
}

func TestProcessWeeklyScenario(t *testing.T) {
	g := Grant{
		ID:            "weekly",
		TokenCount:    1,
		ScheduledDate: now.AddDate(0, 0, -15),
		Recurrence:    Weekly,
		IsActive:      true,
	}
	s := NewScheduler([]Grant{g}, zerolog.Nop())
	w := wallet.NewLedger(0)

	s.Process(now, w)

	if w.Balance() != 3 {
		t.Fatalf("expected 3 missed weekly fires, got %d", w.Balance())
	}
	updated, _ := s.Get("weekly")
	if !updated.ScheduledDate.After(now) {
		t.Errorf("expected scheduled date after now, got %v", updated.ScheduledDate)
	}
}

func TestProcessRespectsCap(t *testing.T) {
	tests := []struct {
		name     string
		balance  int
		cap      *int
		want     int
		advanced bool
	}{
		{"cap limits credit", 3, intPtr(5), 5, true},
		{"cap already exceeded", 9, intPtr(5), 9, true},
		{"zero cap adds nothing", 0, intPtr(0), 0, true},
		{"no cap", 3, nil, 7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grant{
				ID:              "g",
				TokenCount:      4,
				ScheduledDate:   now.Add(-time.Hour),
				Recurrence:      Daily,
				IsActive:        true,
				MaxWalletTokens: tt.cap,
			}
			s := NewScheduler([]Grant{g}, zerolog.Nop())
			w := wallet.NewLedger(tt.balance)

			result := s.Process(now, w)

			if w.Balance() != tt.want {
				t.Errorf("expected balance %d, got %d", tt.want, w.Balance())
			}
			if got := len(result.Changed) == 1; got != tt.advanced {
				t.Errorf("expected advanced=%v, got %v", tt.advanced, got)
			}
		})
	}
}

func TestProcessSkipsInactive(t *testing.T) {
	scheduled := now.AddDate(0, 0, -3)
	s := NewScheduler([]Grant{{
		ID:            "off",
		TokenCount:    1,
		ScheduledDate: scheduled,
		Recurrence:    Daily,
		IsActive:      false,
	}}, zerolog.Nop())
	w := wallet.NewLedger(0)

	result := s.Process(now, w)

	if len(result.Changed) != 0 || w.Balance() != 0 {
		t.Fatalf("inactive grant fired: %+v", result)
	}
	g, _ := s.Get("off")
	if !g.ScheduledDate.Equal(scheduled) {
		t.Error("inactive grant date must stay frozen")
	}
}

func TestProcessDefersOverflow(t *testing.T) {
	scheduled := now.AddDate(0, 0, -1)
	s := NewScheduler([]Grant{
		{ID: "broken", TokenCount: 1, ScheduledDate: scheduled, Recurrence: Recurrence("hourly"), IsActive: true},
		{ID: "ok", TokenCount: 1, ScheduledDate: scheduled, Recurrence: Daily, IsActive: true},
	}, zerolog.Nop())
	w := wallet.NewLedger(0)

	result := s.Process(now, w)

	if len(result.Deferred) != 1 || result.Deferred[0] != "broken" {
		t.Fatalf("expected broken grant deferred, got %+v", result.Deferred)
	}
	broken, _ := s.Get("broken")
	if !broken.ScheduledDate.Equal(scheduled) {
		t.Error("deferred grant must be left unmodified")
	}
	if w.Balance() != 1 {
		t.Errorf("healthy grant should still fire, balance=%d", w.Balance())
	}
}

func TestMonthlyAdvanceClamps(t *testing.T) {
	tests := []struct {
		from time.Time
		want time.Time
	}{
		{time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)},
		{time.Date(2025, 12, 15, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := Monthly.Advance(tt.from)
		if err != nil {
			t.Fatalf("advance %v: %v", tt.from, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("advance %v = %v, want %v", tt.from, got, tt.want)
		}
	}

	_, err := Daily.Advance(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrCalendarOverflow) {
		t.Errorf("expected ErrCalendarOverflow at year boundary, got %v", err)
	}
}

func TestNextOccurrence(t *testing.T) {
	future := now.Add(48 * time.Hour)
	if got := NextOccurrence(Grant{ScheduledDate: future, Recurrence: Daily, IsActive: true}, now); got == nil || !got.Equal(future) {
		t.Errorf("future date should be returned unchanged, got %v", got)
	}

	past := Grant{ScheduledDate: now.AddDate(0, 0, -10), Recurrence: Weekly, IsActive: true}
	got := NextOccurrence(past, now)
	if got == nil || !got.Equal(now.AddDate(0, 0, 4)) {
		t.Errorf("expected next weekly occurrence in 4 days, got %v", got)
	}
	if !past.ScheduledDate.Equal(now.AddDate(0, 0, -10)) {
		t.Error("NextOccurrence must not mutate the grant")
	}

	past.IsActive = false
	if NextOccurrence(past, now) != nil {
		t.Error("inactive grant has no next occurrence")
	}
}

func TestCRUD(t *testing.T) {
	s := NewScheduler(nil, zerolog.Nop())

	g, err := s.Add(Grant{TokenCount: 1, ScheduledDate: now, Recurrence: Daily, IsActive: true, Title: "allowance"}, now)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if g.ID == "" || !g.CreatedDate.Equal(now) {
		t.Fatalf("expected generated id and creation date, got %+v", g)
	}
	if _, err := s.Add(Grant{TokenCount: 0, ScheduledDate: now, Recurrence: Daily}, now); err == nil {
		t.Error("expected validation error for zero tokens")
	}

	active, err := s.Toggle(g.ID)
	if err != nil || active {
		t.Fatalf("toggle: active=%v err=%v", active, err)
	}

	g.TokenCount = 3
	g.CreatedDate = time.Time{}
	if err := s.Update(g); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, _ := s.Get(g.ID)
	if updated.TokenCount != 3 || !updated.CreatedDate.Equal(now) {
		t.Errorf("unexpected updated grant %+v", updated)
	}

	if err := s.Remove(g.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(g.ID); !errors.Is(err, ErrGrantNotFound) {
		t.Errorf("expected ErrGrantNotFound, got %v", err)
	}
	if len(s.List()) != 0 {
		t.Error("expected empty list")
	}
}
