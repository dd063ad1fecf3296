package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/goodtune/tokentimer/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(config.SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "tokentimer.db"),
		BusyTimeout: "5s",
	})
	require.NoError(t, err)
	return store
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTestStore(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "tokentimer.db")

	store, err := Open(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Wallet().Save(context.Background(), storage.Wallet{TotalTokens: 2, UpdatedAt: time.Now()}, nil))
	require.NoError(t, store.Close())

	store, err = Open(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version))
	assert.Equal(t, len(migrations), version)

	w, err := store.Wallet().Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, w.TotalTokens)
}

func TestWithinTransactionRollsBack(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := store.Wallet().Save(ctx, storage.Wallet{TotalTokens: 9}, []storage.JournalEntry{
			{ID: "x", Timestamp: time.Now(), Kind: storage.EntryCredit, Reason: "manual", Amount: 9, Balance: 9},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Wallet().Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	journal, err := store.Wallet().Journal(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, journal)
}

func TestOpenInvalidBusyTimeout(t *testing.T) {
	_, err := Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db"), BusyTimeout: "later"})
	assert.Error(t, err)
}
