package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/goodtune/tokentimer/internal/storage/storagetest"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays 0
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "tt",
		JournalLimit: 100,
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		store, _ := setupTestStore(t)
		return store
	})
}

func TestOpenInvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost", DialTimeout: "soon"})
	if err == nil {
		t.Fatal("expected error for invalid dial timeout")
	}
}

func TestWalletStore_KeyLayout(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	err := store.Wallet().Save(ctx, storage.Wallet{TotalTokens: 5, UpdatedAt: time.Now()}, []storage.JournalEntry{
		{ID: "e1", Timestamp: time.Now(), Kind: storage.EntryCredit, Reason: "manual", Amount: 5, Balance: 5},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if got := mr.HGet("tt:wallet", "total_tokens"); got != "5" {
		t.Errorf("Expected total_tokens=5, got %q", got)
	}
	journal, err := mr.List("tt:wallet:journal")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(journal) != 1 {
		t.Errorf("Expected 1 journal entry, got %d", len(journal))
	}
}

func TestWalletStore_JournalLimit(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()
	store.walletStore.journalLimit = 3

	ctx := context.Background()
	for i := range 5 {
		entry := storage.JournalEntry{
			ID:        string(rune('a' + i)),
			Timestamp: time.Now(),
			Kind:      storage.EntryCredit,
			Reason:    "manual",
			Amount:    1,
			Balance:   i + 1,
		}
		if err := store.Wallet().Save(ctx, storage.Wallet{TotalTokens: i + 1}, []storage.JournalEntry{entry}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	journal, err := store.Wallet().Journal(ctx, 0)
	if err != nil {
		t.Fatalf("Journal failed: %v", err)
	}
	if len(journal) != 3 {
		t.Fatalf("Expected journal trimmed to 3, got %d", len(journal))
	}
	if journal[0].ID != "e" || journal[2].ID != "c" {
		t.Errorf("Expected newest entries e..c, got %s..%s", journal[0].ID, journal[2].ID)
	}
}

func TestSessionStore_CorruptHash(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	mr.HSet("tt:timer:session", "id", "s1")
	mr.HSet("tt:timer:session", "original_tokens", "many")

	if _, err := store.Session().Get(context.Background()); err == nil {
		t.Fatal("Expected parse error for corrupt session hash")
	}
}
