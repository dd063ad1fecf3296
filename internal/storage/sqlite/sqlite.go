// Package sqlite implements storage.Store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Thiht/transactor"
	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/storage"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface using SQLite
type Store struct {
	db            *sql.DB
	tx            transactor.Transactor
	walletStore   *walletStore
	sessionStore  *sessionStore
	usageStore    *usageStore
	grantStore    *grantStore
	settingsStore *settingsStore
}

// Open creates a new database connection and runs migrations
func Open(cfg config.SQLiteConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := storage.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := cfg.Path
	if cfg.BusyTimeout != "" {
		busy, err := time.ParseDuration(cfg.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid busy_timeout: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, busy.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite limitation
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	tx, dbGetter := txStdLib.NewTransactor(db, txStdLib.NestedTransactionsSavepoints)

	return &Store{
		db:            db,
		tx:            tx,
		walletStore:   &walletStore{dbGetter: dbGetter, tx: tx},
		sessionStore:  &sessionStore{dbGetter: dbGetter},
		usageStore:    &usageStore{dbGetter: dbGetter, tx: tx},
		grantStore:    &grantStore{dbGetter: dbGetter},
		settingsStore: &settingsStore{dbGetter: dbGetter},
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTransaction runs fn so that every sub-store call made with the
// returned context shares one transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.WithinTransaction(ctx, fn)
}

// Wallet returns the WalletStore implementation
func (s *Store) Wallet() storage.WalletStore { return s.walletStore }

// Session returns the SessionStore implementation
func (s *Store) Session() storage.SessionStore { return s.sessionStore }

// Usage returns the UsageStore implementation
func (s *Store) Usage() storage.UsageStore { return s.usageStore }

// Grants returns the GrantStore implementation
func (s *Store) Grants() storage.GrantStore { return s.grantStore }

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore { return s.settingsStore }

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
