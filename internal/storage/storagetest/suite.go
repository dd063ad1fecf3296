// Package storagetest holds behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a fresh, empty store. The test owns closing it.
type Opener func(t *testing.T) storage.Store

var base = time.Date(2025, 7, 22, 9, 0, 0, 0, time.UTC)

// Run exercises every sub-store against open.
func Run(t *testing.T, open Opener) {
	t.Run("wallet", func(t *testing.T) { testWallet(t, open) })
	t.Run("journal retention", func(t *testing.T) { testJournalRetention(t, open) })
	t.Run("session", func(t *testing.T) { testSession(t, open) })
	t.Run("usage", func(t *testing.T) { testUsage(t, open) })
	t.Run("grants", func(t *testing.T) { testGrants(t, open) })
	t.Run("settings", func(t *testing.T) { testSettings(t, open) })
}

func withStore(t *testing.T, open Opener) storage.Store {
	t.Helper()
	store := open(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testWallet(t *testing.T, open Opener) {
	store := withStore(t, open)
	ctx := context.Background()

	_, err := store.Wallet().Get(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound), "expected ErrNotFound, got %v", err)

	entries := []storage.JournalEntry{
		{ID: "e1", Timestamp: base, Kind: storage.EntryCredit, Reason: "manual", Amount: 4, Balance: 4},
		{ID: "e2", Timestamp: base, Kind: storage.EntryDebit, Reason: "redeem", Amount: 3, Balance: 1},
	}
	require.NoError(t, store.Wallet().Save(ctx, storage.Wallet{TotalTokens: 1, UpdatedAt: base}, entries))
	require.NoError(t, store.Wallet().Save(ctx, storage.Wallet{TotalTokens: 3, UpdatedAt: base.Add(time.Minute)}, []storage.JournalEntry{
		{ID: "e3", Timestamp: base.Add(time.Minute), Kind: storage.EntryCredit, Reason: "refund", Amount: 2, Balance: 3},
	}))

	w, err := store.Wallet().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, w.TotalTokens)

	journal, err := store.Wallet().Journal(ctx, 0)
	require.NoError(t, err)
	require.Len(t, journal, 3)
	assert.Equal(t, []string{"e3", "e2", "e1"}, ids(journal))

	limited, err := store.Wallet().Journal(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e2"}, ids(limited))
}

func testJournalRetention(t *testing.T, open Opener) {
	store := withStore(t, open)
	ctx := context.Background()

	var entries []storage.JournalEntry
	for i := range 4 {
		entries = append(entries, storage.JournalEntry{
			ID:        string(rune('a' + i)),
			Timestamp: base.AddDate(0, 0, i),
			Kind:      storage.EntryCredit,
			Reason:    "grant",
			Amount:    1,
			Balance:   i + 1,
		})
	}
	require.NoError(t, store.Wallet().Save(ctx, storage.Wallet{TotalTokens: 4}, entries))

	deleted, err := store.Wallet().DeleteJournalBefore(ctx, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	journal, err := store.Wallet().Journal(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, ids(journal))
}

func testSession(t *testing.T, open Opener) {
	store := withStore(t, open)
	ctx := context.Background()

	_, err := store.Session().Get(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound))
	require.NoError(t, store.Session().Clear(ctx))

	pausedAt := base.Add(10 * time.Minute)
	session := storage.TimerSession{
		ID:                 "s1",
		OriginalTokens:     4,
		TotalMinutes:       60,
		StartTime:          base,
		IsActive:           true,
		IsPaused:           true,
		PausedAt:           &pausedAt,
		TotalPausedSeconds: 90,
		LastActivity:       base.Add(5 * time.Minute),
	}
	require.NoError(t, store.Session().Put(ctx, session))

	got, err := store.Session().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, 60, got.TotalMinutes)
	assert.True(t, got.IsPaused)
	require.NotNil(t, got.PausedAt)
	assert.True(t, got.PausedAt.Equal(pausedAt))
	assert.InDelta(t, 90, got.TotalPausedSeconds, 1e-9)
	assert.True(t, got.StartTime.Equal(base))

	require.NoError(t, store.Session().Clear(ctx))
	_, err = store.Session().Get(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testUsage(t *testing.T, open Opener) {
	store := withStore(t, open)
	ctx := context.Background()

	_, err := store.Usage().Get(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	ledger := storage.UsageLedger{
		DailyMinutes: map[string]int{"2025-07-21": 30, "2025-07-22": 45},
	}
	for i := range 12 {
		ledger.Sessions = append(ledger.Sessions, storage.SessionRecord{
			ID:             string(rune('a' + i)),
			StartTime:      base.Add(time.Duration(i) * time.Hour),
			EndTime:        base.Add(time.Duration(i)*time.Hour + 15*time.Minute),
			OriginalTokens: 1,
			ActualMinutes:  15,
			WasCompleted:   i%2 == 0,
		})
	}
	require.NoError(t, store.Usage().Save(ctx, ledger))

	got, err := store.Usage().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.DailyMinutes, got.DailyMinutes)
	require.Len(t, got.Sessions, 12)
	for i, r := range got.Sessions {
		assert.Equal(t, ledger.Sessions[i].ID, r.ID)
	}

	// A second save replaces rather than merges.
	require.NoError(t, store.Usage().Save(ctx, storage.UsageLedger{
		DailyMinutes: map[string]int{"2025-07-23": 15},
		Sessions:     ledger.Sessions[:1],
	}))
	got, err = store.Usage().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2025-07-23": 15}, got.DailyMinutes)
	assert.Len(t, got.Sessions, 1)
}

func testGrants(t *testing.T, open Opener) {
	store := withStore(t, open)
	ctx := context.Background()

	limit := 5
	grants := []storage.ScheduledGrant{
		{ID: "z-weekly", TokenCount: 1, ScheduledDate: base, Title: "weekly", Recurrence: "weekly", IsActive: true, CreatedDate: base, Position: 0},
		{ID: "a-daily", TokenCount: 2, ScheduledDate: base, Title: "daily", Recurrence: "daily", IsActive: true, CreatedDate: base, MaxWalletTokens: &limit, Position: 1},
	}
	for _, g := range grants {
		require.NoError(t, store.Grants().Upsert(ctx, g))
	}

	list, err := store.Grants().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "z-weekly", list[0].ID)
	assert.Equal(t, "a-daily", list[1].ID)

	got, err := store.Grants().Get(ctx, "a-daily")
	require.NoError(t, err)
	require.NotNil(t, got.MaxWalletTokens)
	assert.Equal(t, 5, *got.MaxWalletTokens)

	got.ScheduledDate = base.AddDate(0, 0, 1)
	got.IsActive = false
	require.NoError(t, store.Grants().Upsert(ctx, *got))
	updated, err := store.Grants().Get(ctx, "a-daily")
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.ScheduledDate.Equal(base.AddDate(0, 0, 1)))

	require.NoError(t, store.Grants().Delete(ctx, "a-daily"))
	assert.True(t, errors.Is(store.Grants().Delete(ctx, "a-daily"), storage.ErrNotFound))
	_, err = store.Grants().Get(ctx, "a-daily")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testSettings(t *testing.T, open Opener) {
	store := withStore(t, open)
	ctx := context.Background()

	_, err := store.Settings().Get(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	goal := 120
	s := storage.Settings{
		GracePeriodMinutes: 3,
		AutoPauseEnabled:   true,
		AutoPauseMinutes:   10,
		DailyGoalMinutes:   &goal,
		TimeDisplay:        "minutesOnly",
		WeekStart:          1,
	}
	require.NoError(t, store.Settings().Save(ctx, s))

	got, err := store.Settings().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, *got)
}

func ids(entries []storage.JournalEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
