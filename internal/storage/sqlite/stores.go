package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Thiht/transactor"
	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/goodtune/tokentimer/internal/storage"
)

const (
	selectJournal = "SELECT id, timestamp, kind, reason, amount, balance FROM wallet_journal ORDER BY timestamp DESC, seq DESC"
	selectSession = "SELECT id, original_tokens, total_minutes, start_time, is_active, is_paused, paused_at, total_paused_seconds, last_activity FROM timer_session WHERE slot = 1"
	selectGrants  = "SELECT id, token_count, scheduled_date, title, notes, recurrence, is_active, created_date, max_wallet_tokens, position FROM grants"
)

type scanner interface {
	Scan(dest ...any) error
}

type walletStore struct {
	dbGetter txStdLib.DBGetter
	tx       transactor.Transactor
}

// Get retrieves the wallet balance
func (s *walletStore) Get(ctx context.Context) (*storage.Wallet, error) {
	var total int
	var updatedAt int64
	err := s.dbGetter(ctx).QueryRowContext(ctx, "SELECT total_tokens, updated_at FROM wallet WHERE id = 1").Scan(&total, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &storage.Wallet{TotalTokens: total, UpdatedAt: fromNanos(updatedAt)}, nil
}

// Save writes the balance and appends journal entries in one transaction
func (s *walletStore) Save(ctx context.Context, wallet storage.Wallet, entries []storage.JournalEntry) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		db := s.dbGetter(ctx)
		if _, err := db.ExecContext(ctx, `
			INSERT INTO wallet (id, total_tokens, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET total_tokens = excluded.total_tokens, updated_at = excluded.updated_at`,
			wallet.TotalTokens, nanos(wallet.UpdatedAt),
		); err != nil {
			return fmt.Errorf("save wallet: %w", err)
		}

		for _, entry := range entries {
			if entry.Timestamp.IsZero() {
				entry.Timestamp = time.Now().UTC()
			}
			if _, err := db.ExecContext(ctx,
				"INSERT INTO wallet_journal (id, timestamp, kind, reason, amount, balance) VALUES (?, ?, ?, ?, ?, ?)",
				entry.ID, nanos(entry.Timestamp), string(entry.Kind), entry.Reason, entry.Amount, entry.Balance,
			); err != nil {
				return fmt.Errorf("append journal entry %s: %w", entry.ID, err)
			}
		}
		return nil
	})
}

// Journal returns entries newest first
func (s *walletStore) Journal(ctx context.Context, limit int) ([]storage.JournalEntry, error) {
	query := selectJournal
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.dbGetter(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []storage.JournalEntry
	for rows.Next() {
		var entry storage.JournalEntry
		var ts int64
		var kind string
		if err := rows.Scan(&entry.ID, &ts, &kind, &entry.Reason, &entry.Amount, &entry.Balance); err != nil {
			return nil, err
		}
		entry.Timestamp = fromNanos(ts)
		entry.Kind = storage.EntryKind(kind)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteJournalBefore removes entries older than cutoff
func (s *walletStore) DeleteJournalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.dbGetter(ctx).ExecContext(ctx, "DELETE FROM wallet_journal WHERE timestamp < ?", nanos(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type sessionStore struct {
	dbGetter txStdLib.DBGetter
}

// Get retrieves the live timer session
func (s *sessionStore) Get(ctx context.Context) (*storage.TimerSession, error) {
	var session storage.TimerSession
	var start, lastActivity int64
	var pausedAt sql.NullInt64
	err := s.dbGetter(ctx).QueryRowContext(ctx, selectSession).Scan(
		&session.ID,
		&session.OriginalTokens,
		&session.TotalMinutes,
		&start,
		&session.IsActive,
		&session.IsPaused,
		&pausedAt,
		&session.TotalPausedSeconds,
		&lastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	session.StartTime = fromNanos(start)
	session.LastActivity = fromNanos(lastActivity)
	if pausedAt.Valid {
		t := fromNanos(pausedAt.Int64)
		session.PausedAt = &t
	}
	return &session, nil
}

// Put replaces the live timer session
func (s *sessionStore) Put(ctx context.Context, session storage.TimerSession) error {
	var pausedAt sql.NullInt64
	if session.PausedAt != nil {
		pausedAt = sql.NullInt64{Int64: nanos(*session.PausedAt), Valid: true}
	}
	_, err := s.dbGetter(ctx).ExecContext(ctx, `
		INSERT OR REPLACE INTO timer_session
			(slot, id, original_tokens, total_minutes, start_time, is_active, is_paused, paused_at, total_paused_seconds, last_activity)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.OriginalTokens,
		session.TotalMinutes,
		nanos(session.StartTime),
		session.IsActive,
		session.IsPaused,
		pausedAt,
		session.TotalPausedSeconds,
		nanos(session.LastActivity),
	)
	return err
}

// Clear removes the live timer session
func (s *sessionStore) Clear(ctx context.Context) error {
	_, err := s.dbGetter(ctx).ExecContext(ctx, "DELETE FROM timer_session")
	return err
}

type usageStore struct {
	dbGetter txStdLib.DBGetter
	tx       transactor.Transactor
}

// Get retrieves the usage ledger
func (s *usageStore) Get(ctx context.Context) (*storage.UsageLedger, error) {
	db := s.dbGetter(ctx)

	var savedAt int64
	err := db.QueryRowContext(ctx, "SELECT saved_at FROM usage_saved WHERE id = 1").Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ledger := storage.UsageLedger{DailyMinutes: make(map[string]int)}

	rows, err := db.QueryContext(ctx, "SELECT day, minutes FROM usage_daily")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var day string
		var minutes int
		if err := rows.Scan(&day, &minutes); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ledger.DailyMinutes[day] = minutes
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = db.QueryContext(ctx, `
		SELECT id, start_time, end_time, original_tokens, actual_minutes, was_completed, was_in_grace_period
		FROM usage_sessions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var record storage.SessionRecord
		var start, end int64
		if err := rows.Scan(&record.ID, &start, &end, &record.OriginalTokens, &record.ActualMinutes, &record.WasCompleted, &record.WasInGracePeriod); err != nil {
			return nil, err
		}
		record.StartTime = fromNanos(start)
		record.EndTime = fromNanos(end)
		ledger.Sessions = append(ledger.Sessions, record)
	}
	return &ledger, rows.Err()
}

// Save replaces the usage ledger in one transaction
func (s *usageStore) Save(ctx context.Context, ledger storage.UsageLedger) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		db := s.dbGetter(ctx)
		if _, err := db.ExecContext(ctx, "DELETE FROM usage_daily"); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, "DELETE FROM usage_sessions"); err != nil {
			return err
		}

		for day, minutes := range ledger.DailyMinutes {
			if _, err := db.ExecContext(ctx, "INSERT INTO usage_daily (day, minutes) VALUES (?, ?)", day, minutes); err != nil {
				return fmt.Errorf("save usage for %s: %w", day, err)
			}
		}
		for i, record := range ledger.Sessions {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO usage_sessions
					(seq, id, start_time, end_time, original_tokens, actual_minutes, was_completed, was_in_grace_period)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				i, record.ID, nanos(record.StartTime), nanos(record.EndTime),
				record.OriginalTokens, record.ActualMinutes, record.WasCompleted, record.WasInGracePeriod,
			); err != nil {
				return fmt.Errorf("save session record %s: %w", record.ID, err)
			}
		}

		_, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO usage_saved (id, saved_at) VALUES (1, ?)", time.Now().UnixNano())
		return err
	})
}

type grantStore struct {
	dbGetter txStdLib.DBGetter
}

func scanGrant(row scanner) (*storage.ScheduledGrant, error) {
	var grant storage.ScheduledGrant
	var scheduled, created int64
	var maxWallet sql.NullInt64
	if err := row.Scan(
		&grant.ID,
		&grant.TokenCount,
		&scheduled,
		&grant.Title,
		&grant.Notes,
		&grant.Recurrence,
		&grant.IsActive,
		&created,
		&maxWallet,
		&grant.Position,
	); err != nil {
		return nil, err
	}
	grant.ScheduledDate = fromNanos(scheduled)
	grant.CreatedDate = fromNanos(created)
	if maxWallet.Valid {
		v := int(maxWallet.Int64)
		grant.MaxWalletTokens = &v
	}
	return &grant, nil
}

// Get retrieves a grant by ID
func (s *grantStore) Get(ctx context.Context, id string) (*storage.ScheduledGrant, error) {
	grant, err := scanGrant(s.dbGetter(ctx).QueryRowContext(ctx, selectGrants+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return grant, err
}

// List retrieves every grant in position order
func (s *grantStore) List(ctx context.Context) ([]storage.ScheduledGrant, error) {
	rows, err := s.dbGetter(ctx).QueryContext(ctx, selectGrants+" ORDER BY position, created_date")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var grants []storage.ScheduledGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

// Upsert creates or replaces a grant
func (s *grantStore) Upsert(ctx context.Context, grant storage.ScheduledGrant) error {
	if grant.ID == "" {
		return fmt.Errorf("grant id is required")
	}
	var maxWallet sql.NullInt64
	if grant.MaxWalletTokens != nil {
		maxWallet = sql.NullInt64{Int64: int64(*grant.MaxWalletTokens), Valid: true}
	}
	_, err := s.dbGetter(ctx).ExecContext(ctx, `
		INSERT OR REPLACE INTO grants
			(id, token_count, scheduled_date, title, notes, recurrence, is_active, created_date, max_wallet_tokens, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grant.ID,
		grant.TokenCount,
		nanos(grant.ScheduledDate),
		grant.Title,
		grant.Notes,
		grant.Recurrence,
		grant.IsActive,
		nanos(grant.CreatedDate),
		maxWallet,
		grant.Position,
	)
	return err
}

// Delete removes a grant
func (s *grantStore) Delete(ctx context.Context, id string) error {
	res, err := s.dbGetter(ctx).ExecContext(ctx, "DELETE FROM grants WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type settingsStore struct {
	dbGetter txStdLib.DBGetter
}

// Get retrieves the saved settings
func (s *settingsStore) Get(ctx context.Context) (*storage.Settings, error) {
	var raw string
	err := s.dbGetter(ctx).QueryRowContext(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var settings storage.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Save replaces the saved settings
func (s *settingsStore) Save(ctx context.Context, settings storage.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.dbGetter(ctx).ExecContext(ctx, "INSERT OR REPLACE INTO settings (id, data) VALUES (1, ?)", string(data))
	return err
}
