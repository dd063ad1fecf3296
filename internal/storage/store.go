package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Wallet() WalletStore
	Session() SessionStore
	Usage() UsageStore
	Grants() GrantStore
	Settings() SettingsStore
}

// WalletStore persists the balance and its append-only journal.
type WalletStore interface {
	Get(ctx context.Context) (*Wallet, error)
	// Save writes the balance and appends entries in one atomic step.
	Save(ctx context.Context, wallet Wallet, entries []JournalEntry) error
	// Journal returns up to limit entries, newest first. limit <= 0 means all.
	Journal(ctx context.Context, limit int) ([]JournalEntry, error)
	DeleteJournalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionStore persists the single live timer session.
type SessionStore interface {
	Get(ctx context.Context) (*TimerSession, error)
	Put(ctx context.Context, session TimerSession) error
	Clear(ctx context.Context) error
}

// UsageStore persists the usage ledger.
type UsageStore interface {
	Get(ctx context.Context) (*UsageLedger, error)
	Save(ctx context.Context, ledger UsageLedger) error
}

// GrantStore manages scheduled grant rules.
type GrantStore interface {
	Get(ctx context.Context, id string) (*ScheduledGrant, error)
	List(ctx context.Context) ([]ScheduledGrant, error)
	Upsert(ctx context.Context, grant ScheduledGrant) error
	Delete(ctx context.Context, id string) error
}

// SettingsStore persists user preferences.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings Settings) error
}
