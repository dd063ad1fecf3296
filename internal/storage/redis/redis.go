package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/config"
	"github.com/goodtune/tokentimer/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	walletStore   *walletStore
	sessionStore  *sessionStore
	usageStore    *usageStore
	grantStore    *grantStore
	settingsStore *settingsStore
}

// keys builds every key under a common prefix
type keys struct {
	prefix string
}

func (k keys) wallet() string        { return k.prefix + ":wallet" }
func (k keys) journal() string       { return k.prefix + ":wallet:journal" }
func (k keys) session() string       { return k.prefix + ":timer:session" }
func (k keys) usageDaily() string    { return k.prefix + ":usage:daily" }
func (k keys) usageSessions() string { return k.prefix + ":usage:sessions" }
func (k keys) usageSaved() string    { return k.prefix + ":usage:saved" }
func (k keys) grants() string        { return k.prefix + ":grants" }
func (k keys) settings() string      { return k.prefix + ":settings" }

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	// Create Redis client
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tokentimer"
	}
	k := keys{prefix: prefix}

	// Initialize stores
	store := &Store{
		client:        client,
		walletStore:   &walletStore{client: client, keys: k, journalLimit: cfg.JournalLimit},
		sessionStore:  &sessionStore{client: client, keys: k},
		usageStore:    &usageStore{client: client, keys: k},
		grantStore:    &grantStore{client: client, keys: k},
		settingsStore: &settingsStore{client: client, keys: k},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
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
