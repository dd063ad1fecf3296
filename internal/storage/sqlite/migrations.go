package sqlite

import (
	"database/sql"
	"fmt"
)

// runMigrations applies all database migrations
func runMigrations(db *sql.DB) error {
	// Create migrations table
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	// Apply migrations in order
	for i, migration := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(migration); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
	}

	return nil
}

// migrations run in slice order; version is index+1
var migrations = []string{
	migration001Wallet,
	migration002Timer,
	migration003Usage,
	migration004Grants,
	migration005Settings,
}

const migration001Wallet = `
CREATE TABLE IF NOT EXISTS wallet (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	total_tokens INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS wallet_journal (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	timestamp INTEGER NOT NULL, -- unix nanoseconds
	kind TEXT NOT NULL, -- CREDIT or DEBIT
	reason TEXT NOT NULL,
	amount INTEGER NOT NULL,
	balance INTEGER NOT NULL
);

CREATE INDEX idx_journal_timestamp ON wallet_journal(timestamp, seq);
`

const migration002Timer = `
CREATE TABLE IF NOT EXISTS timer_session (
	slot INTEGER PRIMARY KEY CHECK (slot = 1),
	id TEXT NOT NULL,
	original_tokens INTEGER NOT NULL,
	total_minutes INTEGER NOT NULL,
	start_time INTEGER NOT NULL,
	is_active INTEGER NOT NULL,
	is_paused INTEGER NOT NULL,
	paused_at INTEGER, -- NULL when running
	total_paused_seconds REAL NOT NULL DEFAULT 0,
	last_activity INTEGER NOT NULL DEFAULT 0
);
`

const migration003Usage = `
CREATE TABLE IF NOT EXISTS usage_daily (
	day TEXT PRIMARY KEY, -- YYYY-MM-DD
	minutes INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_sessions (
	seq INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	original_tokens INTEGER NOT NULL,
	actual_minutes INTEGER NOT NULL,
	was_completed INTEGER NOT NULL,
	was_in_grace_period INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_saved (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	saved_at INTEGER NOT NULL
);
`

const migration004Grants = `
CREATE TABLE IF NOT EXISTS grants (
	id TEXT PRIMARY KEY,
	token_count INTEGER NOT NULL,
	scheduled_date INTEGER NOT NULL,
	title TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	recurrence TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_date INTEGER NOT NULL,
	max_wallet_tokens INTEGER, -- NULL means uncapped
	position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_grants_position ON grants(position, created_date);
`

const migration005Settings = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL -- JSON document
);
`
