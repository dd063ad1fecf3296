package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/storage"
	"go.etcd.io/bbolt"
)

type walletStore struct {
	db *bbolt.DB
}

func (s *walletStore) Get(ctx context.Context) (*storage.Wallet, error) {
	return getBucketValue[storage.Wallet](ctx, s.db, bucketWallet, keyCurrent)
}

func (s *walletStore) Save(ctx context.Context, wallet storage.Wallet, entries []storage.JournalEntry) error {
	data, err := marshal(wallet)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketWallet))
		if b == nil {
			return fmt.Errorf("wallet bucket missing")
		}
		if err := b.Put([]byte(keyCurrent), data); err != nil {
			return err
		}

		journal := tx.Bucket([]byte(bucketJournal))
		if journal == nil {
			return fmt.Errorf("wallet journal bucket missing")
		}
		for _, entry := range entries {
			if entry.Timestamp.IsZero() {
				entry.Timestamp = time.Now().UTC()
			}
			seq, err := journal.NextSequence()
			if err != nil {
				return err
			}
			key := journalKey(entry.Timestamp, seq)
			if entry.ID == "" {
				entry.ID = key
			}
			value, err := marshal(entry)
			if err != nil {
				return err
			}
			if err := journal.Put([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *walletStore) Journal(ctx context.Context, limit int) ([]storage.JournalEntry, error) {
	entries := make([]storage.JournalEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketJournal))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry storage.JournalEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

func (s *walletStore) DeleteJournalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	return deleted, s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketJournal))
		if bucket == nil {
			return nil
		}

		var stale [][]byte
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry storage.JournalEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			if !entry.Timestamp.Before(cutoff) {
				break
			}
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
}
