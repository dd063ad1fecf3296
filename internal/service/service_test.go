package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/tokentimer/internal/clock"
	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/notify"
	"github.com/goodtune/tokentimer/internal/schedule"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/goodtune/tokentimer/internal/storage/bolt"
	"github.com/goodtune/tokentimer/internal/storage/sqlite"
	"github.com/goodtune/tokentimer/internal/timer"
	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 7, 22, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    storage.Store
	clock    *clock.Fake
	notifier *notify.LogScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "tokentimer.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store, clock: clock.NewFake(start)}
	f.svc, f.notifier = f.open(t)
	return f
}

// open builds a fresh service over the fixture's store and loads it.
func (f *fixture) open(t *testing.T) (*Service, *notify.LogScheduler) {
	t.Helper()
	notifier := notify.NewLogScheduler(zerolog.Nop())
	svc, err := New(f.store, Options{Clock: f.clock, Location: time.UTC, Notifier: notifier}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))
	return svc, notifier
}

func TestScenarioGraceRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	balance, err := f.svc.AddTokens(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)

	session, err := f.svc.StartTimer(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 60, session.TotalMinutes)
	assert.Equal(t, 0, f.svc.Status().Balance)

	f.clock.Advance(30 * time.Second)
	split, ended := f.svc.EndTimerEarly(ctx)
	require.True(t, ended)
	assert.Equal(t, timer.Split{Returned: 4, Redeemed: 0, InGracePeriod: true}, split)
	assert.Equal(t, 4, f.svc.Status().Balance)
	assert.Equal(t, timer.StateIdle, f.svc.Status().State)

	sessions := f.svc.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].WasInGracePeriod)
	assert.Equal(t, 0, sessions[0].ActualMinutes)
	assert.Equal(t, 0, f.svc.Stats().TodayMinutes)
}

func TestScenarioProportionalRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 4)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 4)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	split, ended := f.svc.EndTimerEarly(ctx)
	require.True(t, ended)
	assert.Equal(t, 2, split.Returned)
	assert.Equal(t, 2, split.Redeemed)
	assert.False(t, split.InGracePeriod)
	assert.Equal(t, 2, f.svc.Status().Balance)
	assert.Equal(t, 30, f.svc.Stats().TodayMinutes)

	// Ending again is a no-op.
	_, ended = f.svc.EndTimerEarly(ctx)
	assert.False(t, ended)
}

func TestScenarioWeeklyCatchUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.AddScheduledGrant(ctx, schedule.Grant{
		TokenCount:    1,
		ScheduledDate: start.AddDate(0, 0, -15),
		Title:         "Weekly allowance",
		Recurrence:    schedule.Weekly,
		IsActive:      true,
	})
	require.NoError(t, err)

	result := f.svc.ProcessGrants(ctx)
	assert.Equal(t, 3, result.Credited)
	assert.Equal(t, 3, f.svc.Status().Balance)

	grants := f.svc.ScheduledGrants()
	require.Len(t, grants, 1)
	assert.Equal(t, g.ID, grants[0].ID)
	assert.True(t, grants[0].ScheduledDate.After(start))
	require.NotNil(t, grants[0].Next)
	assert.True(t, grants[0].Next.Equal(grants[0].ScheduledDate))

	// Nothing further is due.
	assert.Equal(t, 0, f.svc.ProcessGrants(ctx).Credited)
}

func TestStartTimerInsufficientTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 2)
	require.NoError(t, err)

	_, err = f.svc.StartTimer(ctx, 5)
	require.ErrorIs(t, err, wallet.ErrInsufficientTokens)
	assert.Equal(t, 2, f.svc.Status().Balance)
	assert.Equal(t, timer.StateIdle, f.svc.Status().State)

	_, err = f.svc.StartTimer(ctx, 1)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 1)
	require.ErrorIs(t, err, timer.ErrSessionActive)
	assert.Equal(t, 1, f.svc.Status().Balance)
}

func TestTickCompletesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []timer.EventKind
	f.svc.Subscribe(func(ev timer.Event) { events = append(events, ev.Kind) })

	_, err := f.svc.AddTokens(ctx, 1)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, f.notifier.Pending())

	f.clock.Advance(14 * time.Minute)
	assert.False(t, f.svc.Tick(ctx))

	f.clock.Advance(time.Minute)
	assert.True(t, f.svc.Tick(ctx))
	assert.Equal(t, 0, f.svc.Status().Balance)
	assert.Equal(t, 15, f.svc.Stats().TodayMinutes)
	assert.Empty(t, f.notifier.Pending())
	assert.Equal(t, []timer.EventKind{timer.EventStarted, timer.EventCompleted}, events)

	sessions := f.svc.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].WasCompleted)
	assert.Equal(t, 15, sessions[0].ActualMinutes)

	_, err = f.store.Session().Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPauseCancelsReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 4)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 4)
	require.NoError(t, err)
	// 60 minutes left: completion plus 5, 10, 15 and 30 minute updates.
	assert.Len(t, f.notifier.Pending(), 5)

	require.NoError(t, f.svc.PauseTimer(ctx))
	assert.Empty(t, f.notifier.Pending())
	assert.ErrorIs(t, f.svc.PauseTimer(ctx), timer.ErrInvalidTransition)

	f.clock.Advance(time.Hour)
	assert.False(t, f.svc.Tick(ctx))

	require.NoError(t, f.svc.ResumeTimer(ctx))
	assert.Len(t, f.notifier.Pending(), 5)
	assert.Equal(t, time.Hour, f.svc.Status().Remaining)
}

func TestAutoPause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 2)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 2)
	require.NoError(t, err)

	f.clock.Advance(9 * time.Minute)
	assert.False(t, f.svc.CheckInactivity(ctx))
	f.svc.RecordActivity()

	f.clock.Advance(9 * time.Minute)
	assert.False(t, f.svc.CheckInactivity(ctx))

	f.clock.Advance(time.Minute)
	assert.True(t, f.svc.CheckInactivity(ctx))
	assert.Equal(t, timer.StatePaused, f.svc.Status().State)
}

func TestAddTokensUpToMaxUsesSettingsCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.svc.Settings()
	limit := 5
	st.MaxWalletTokens = &limit
	require.NoError(t, f.svc.UpdateSettings(ctx, st))

	_, err := f.svc.AddTokens(ctx, 3)
	require.NoError(t, err)

	added, err := f.svc.AddTokensUpToMax(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 5, f.svc.Status().Balance)

	added, err = f.svc.AddTokensUpToMax(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestTokenConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 10)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 3)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	f.svc.EndTimerEarly(ctx)

	_, err = f.svc.AddScheduledGrant(ctx, schedule.Grant{
		TokenCount:    2,
		ScheduledDate: f.clock.Now().AddDate(0, 0, -3),
		Title:         "Daily",
		Recurrence:    schedule.Daily,
		IsActive:      true,
	})
	require.NoError(t, err)
	f.svc.ProcessGrants(ctx)

	_, err = f.svc.StartTimer(ctx, 4)
	require.NoError(t, err)
	f.clock.Advance(61 * time.Minute)
	f.svc.Tick(ctx)

	journal, err := f.svc.Journal(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, journal)

	sum := 0
	for _, e := range journal {
		if e.Kind == wallet.EntryCredit {
			sum += e.Amount
		} else {
			sum -= e.Amount
		}
	}
	balance := f.svc.Status().Balance
	assert.Equal(t, balance, sum)
	assert.Equal(t, balance, journal[0].Balance)
}

func TestLoadRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 5)
	require.NoError(t, err)
	session, err := f.svc.StartTimer(ctx, 2)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.PauseTimer(ctx))
	_, err = f.svc.AddScheduledGrant(ctx, schedule.Grant{
		TokenCount:    1,
		ScheduledDate: start.AddDate(0, 0, 1),
		Title:         "Tomorrow",
		Recurrence:    schedule.Daily,
		IsActive:      true,
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	reloaded, _ := f.open(t)

	status := reloaded.Status()
	assert.Equal(t, 3, status.Balance)
	assert.Equal(t, timer.StatePaused, status.State)
	require.NotNil(t, status.Session)
	assert.Equal(t, session.ID, status.Session.ID)
	assert.Equal(t, 29*time.Minute, status.Remaining)
	assert.Len(t, reloaded.ScheduledGrants(), 1)
}

func TestLoadCompletesExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Session().Put(ctx, storage.TimerSession{
		ID:             "expired",
		OriginalTokens: 1,
		TotalMinutes:   15,
		StartTime:      start.Add(-2 * time.Hour),
		IsActive:       true,
	}))

	svc, _ := f.open(t)
	assert.Equal(t, timer.StateIdle, svc.Status().State)

	sessions := svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "expired", sessions[0].ID)
	assert.True(t, sessions[0].WasCompleted)
	assert.True(t, sessions[0].EndTime.Equal(start.Add(-105*time.Minute)))

	_, err := f.store.Session().Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadRefundsCorruptSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Session().Put(ctx, storage.TimerSession{
		ID:             "corrupt",
		OriginalTokens: 2,
		TotalMinutes:   0,
		StartTime:      start.Add(-10 * time.Minute),
		IsActive:       true,
	}))

	svc, err := New(f.store, Options{Clock: f.clock, Location: time.UTC}, zerolog.Nop())
	require.NoError(t, err)
	err = svc.Load(ctx)
	require.Error(t, err)

	var corrupt *timer.CorruptSessionError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, "corrupt", corrupt.SessionID)
	assert.Equal(t, 1, corrupt.Refund)
	assert.Equal(t, 1, svc.Status().Balance)
	assert.Equal(t, timer.StateIdle, svc.Status().State)

	_, err = f.store.Session().Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRemoveGrantDeletesFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.AddScheduledGrant(ctx, schedule.Grant{
		TokenCount:    1,
		ScheduledDate: start.AddDate(0, 0, 1),
		Title:         "Later",
		Recurrence:    schedule.Monthly,
		IsActive:      true,
	})
	require.NoError(t, err)

	active, err := f.svc.ToggleScheduledGrant(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, f.svc.RemoveScheduledGrant(ctx, g.ID))
	assert.ErrorIs(t, f.svc.RemoveScheduledGrant(ctx, g.ID), schedule.ErrGrantNotFound)

	_, err = f.store.Grants().Get(ctx, g.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResetStatsAndWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 2)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.FastForward(ctx))
	f.clock.Advance(10 * time.Second)
	require.True(t, f.svc.Tick(ctx))
	require.Len(t, f.svc.Sessions(), 1)

	f.svc.ResetStats(ctx)
	assert.Empty(t, f.svc.Sessions())
	assert.Equal(t, 0, f.svc.Stats().TodayMinutes)

	f.svc.ResetWallet(ctx)
	assert.Equal(t, 0, f.svc.Status().Balance)
}

func TestPruneDropsOldData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 1)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.AddTokens(ctx, 1)
	require.NoError(t, err)

	_, entries, err := f.svc.Prune(ctx, time.Time{}, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, entries)

	journal, err := f.svc.Journal(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, journal, 1)
}

func TestLoadReschedulesRunningSessionReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 4)
	require.NoError(t, err)
	session, err := f.svc.StartTimer(ctx, 4)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	reloaded, notifier := f.open(t)
	require.Equal(t, timer.StateRunning, reloaded.Status().State)
	pending := notifier.Pending()
	require.Len(t, pending, 5)
	for _, r := range pending {
		assert.Equal(t, session.ID, r.SessionID)
	}

	// Reloading in place replaces the plan rather than adding to it.
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, notifier.Pending(), 5)

	f.clock.Advance(time.Hour)
	fired := notifier.Fire(f.clock.Now())
	require.Len(t, fired, 5)
	var completion *notify.Reminder
	for i := range fired {
		if fired[i].Kind == notify.KindCompletion {
			completion = &fired[i]
		}
	}
	require.NotNil(t, completion)
	assert.True(t, completion.At.Equal(session.EndTime()))
}

func TestLoadKeepsPausedSessionQuiet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTokens(ctx, 2)
	require.NoError(t, err)
	_, err = f.svc.StartTimer(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, f.svc.PauseTimer(ctx))

	reloaded, notifier := f.open(t)
	assert.Equal(t, timer.StatePaused, reloaded.Status().State)
	assert.Empty(t, notifier.Pending())
}

func openSQLiteService(t *testing.T, path string, clk clock.Clock) *Service {
	t.Helper()
	store, err := sqlite.Open(config.SQLiteConfig{Path: path, BusyTimeout: "5s"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := New(store, Options{Clock: clk, Location: time.UTC}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

func TestPeriodicSaveKeepsChangesFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokentimer.db")
	clk := clock.NewFake(start)

	daemon := openSQLiteService(t, path, clk)
	cli := openSQLiteService(t, path, clk)

	balance, err := cli.AddTokens(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, 5, balance)

	// The daemon has changed nothing, so its save writes nothing.
	require.NoError(t, daemon.Save(ctx))
	assert.Equal(t, 5, openSQLiteService(t, path, clk).Status().Balance)

	// A reload picks the credit up and later daemon writes build on it.
	require.NoError(t, daemon.Load(ctx))
	assert.Equal(t, 5, daemon.Status().Balance)
	_, err = daemon.StartTimer(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, daemon.Save(ctx))

	fresh := openSQLiteService(t, path, clk)
	assert.Equal(t, 3, fresh.Status().Balance)
	assert.Equal(t, timer.StateRunning, fresh.Status().State)

	journal, err := fresh.Journal(ctx, 0)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, 3, journal[0].Balance)
}

func TestMutationsCountsCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.svc.Mutations()
	f.svc.Status()
	f.svc.Stats()
	_, err := f.svc.Journal(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, before, f.svc.Mutations())

	_, err = f.svc.AddTokens(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before+1, f.svc.Mutations())
}
