package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/redis/go-redis/v9"
)

type walletStore struct {
	client       *redis.Client
	keys         keys
	journalLimit int
}

// Get retrieves the wallet balance
func (s *walletStore) Get(ctx context.Context) (*storage.Wallet, error) {
	data, err := s.client.HGetAll(ctx, s.keys.wallet()).Result()
	if err != nil {
		return nil, err
	}
	return parseWallet(data)
}

// Save sets the balance and appends journal entries in one script call
func (s *walletStore) Save(ctx context.Context, wallet storage.Wallet, entries []storage.JournalEntry) error {
	script := redis.NewScript(saveWalletScript)

	args := []interface{}{
		wallet.TotalTokens,
		wallet.UpdatedAt.Format(time.RFC3339Nano),
		s.journalLimit,
	}
	for _, entry := range entries {
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now().UTC()
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		args = append(args, string(data))
	}

	return script.Run(ctx, s.client, []string{s.keys.wallet(), s.keys.journal()}, args...).Err()
}

// Journal returns entries newest first
func (s *walletStore) Journal(ctx context.Context, limit int) ([]storage.JournalEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.LRange(ctx, s.keys.journal(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return decodeJournal(raw)
}

// DeleteJournalBefore trims entries older than cutoff from the tail. Entries
// pushed concurrently land at the head and are unaffected.
func (s *walletStore) DeleteJournalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	raw, err := s.client.LRange(ctx, s.keys.journal(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	entries, err := decodeJournal(raw)
	if err != nil {
		return 0, err
	}

	stale := 0
	for i := len(entries) - 1; i >= 0 && entries[i].Timestamp.Before(cutoff); i-- {
		stale++
	}
	if stale == 0 {
		return 0, nil
	}
	if err := s.client.LTrim(ctx, s.keys.journal(), 0, int64(-(stale + 1))).Err(); err != nil {
		return 0, err
	}
	return stale, nil
}

func decodeJournal(raw []string) ([]storage.JournalEntry, error) {
	entries := make([]storage.JournalEntry, 0, len(raw))
	for _, item := range raw {
		var entry storage.JournalEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type sessionStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves the live timer session
func (s *sessionStore) Get(ctx context.Context) (*storage.TimerSession, error) {
	data, err := s.client.HGetAll(ctx, s.keys.session()).Result()
	if err != nil {
		return nil, err
	}
	return parseTimerSession(data)
}

// Put replaces the live timer session
func (s *sessionStore) Put(ctx context.Context, session storage.TimerSession) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keys.session())
	pipe.HSet(ctx, s.keys.session(), sessionFields(session))
	_, err := pipe.Exec(ctx)
	return err
}

// Clear removes the live timer session
func (s *sessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.keys.session()).Err()
}

type usageStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves the usage ledger
func (s *usageStore) Get(ctx context.Context) (*storage.UsageLedger, error) {
	saved, err := s.client.Exists(ctx, s.keys.usageSaved()).Result()
	if err != nil {
		return nil, err
	}
	if saved == 0 {
		return nil, storage.ErrNotFound
	}

	pipe := s.client.Pipeline()
	dailyCmd := pipe.HGetAll(ctx, s.keys.usageDaily())
	sessionsCmd := pipe.LRange(ctx, s.keys.usageSessions(), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	ledger := storage.UsageLedger{DailyMinutes: make(map[string]int)}
	for day, raw := range dailyCmd.Val() {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse minutes for %s: %w", day, err)
		}
		ledger.DailyMinutes[day] = minutes
	}
	for _, raw := range sessionsCmd.Val() {
		var record storage.SessionRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("unmarshal session record: %w", err)
		}
		ledger.Sessions = append(ledger.Sessions, record)
	}
	return &ledger, nil
}

// Save replaces the usage ledger atomically
func (s *usageStore) Save(ctx context.Context, ledger storage.UsageLedger) error {
	script := redis.NewScript(replaceUsageScript)

	args := []interface{}{len(ledger.DailyMinutes)}
	for day, minutes := range ledger.DailyMinutes {
		args = append(args, day, minutes)
	}
	for _, record := range ledger.Sessions {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal session record: %w", err)
		}
		args = append(args, string(data))
	}

	keys := []string{s.keys.usageDaily(), s.keys.usageSessions(), s.keys.usageSaved()}
	return script.Run(ctx, s.client, keys, args...).Err()
}

type grantStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves a grant by ID
func (s *grantStore) Get(ctx context.Context, id string) (*storage.ScheduledGrant, error) {
	raw, err := s.client.HGet(ctx, s.keys.grants(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var grant storage.ScheduledGrant
	if err := json.Unmarshal([]byte(raw), &grant); err != nil {
		return nil, fmt.Errorf("unmarshal grant: %w", err)
	}
	return &grant, nil
}

// List retrieves every grant in position order
func (s *grantStore) List(ctx context.Context) ([]storage.ScheduledGrant, error) {
	all, err := s.client.HGetAll(ctx, s.keys.grants()).Result()
	if err != nil {
		return nil, err
	}
	grants := make([]storage.ScheduledGrant, 0, len(all))
	for id, raw := range all {
		var grant storage.ScheduledGrant
		if err := json.Unmarshal([]byte(raw), &grant); err != nil {
			return nil, fmt.Errorf("unmarshal grant %s: %w", id, err)
		}
		grants = append(grants, grant)
	}
	storage.SortGrants(grants)
	return grants, nil
}

// Upsert creates or replaces a grant
func (s *grantStore) Upsert(ctx context.Context, grant storage.ScheduledGrant) error {
	if grant.ID == "" {
		return fmt.Errorf("grant id is required")
	}
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	return s.client.HSet(ctx, s.keys.grants(), grant.ID, string(data)).Err()
}

// Delete removes a grant
func (s *grantStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.keys.grants(), id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type settingsStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves the saved settings
func (s *settingsStore) Get(ctx context.Context) (*storage.Settings, error) {
	raw, err := s.client.Get(ctx, s.keys.settings()).Result()
	if errors.Is(err, redis.Nil) {
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
	return s.client.Set(ctx, s.keys.settings(), string(data), 0).Err()
}
