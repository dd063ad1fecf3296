package bolt

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goodtune/tokentimer/internal/storage"
	"go.etcd.io/bbolt"
)

type usageStore struct {
	db *bbolt.DB
}

// Get returns storage.ErrNotFound when nothing has been saved yet.
func (s *usageStore) Get(ctx context.Context) (*storage.UsageLedger, error) {
	ledger := storage.UsageLedger{DailyMinutes: make(map[string]int)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		daily := tx.Bucket([]byte(bucketUsageDaily))
		sessions := tx.Bucket([]byte(bucketUsageSessions))
		if daily == nil || sessions == nil {
			return storage.ErrNotFound
		}
		if dk, _ := daily.Cursor().First(); dk == nil {
			if sk, _ := sessions.Cursor().First(); sk == nil {
				return storage.ErrNotFound
			}
		}

		if err := daily.ForEach(func(k, v []byte) error {
			minutes, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("parse minutes for %s: %w", k, err)
			}
			ledger.DailyMinutes[string(k)] = minutes
			return nil
		}); err != nil {
			return err
		}

		// Keys are zero-padded sequence numbers, so iteration order is
		// insertion order.
		return sessions.ForEach(func(_, v []byte) error {
			var record storage.SessionRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			ledger.Sessions = append(ledger.Sessions, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (s *usageStore) Save(ctx context.Context, ledger storage.UsageLedger) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		daily, err := resetBucket(tx, bucketUsageDaily)
		if err != nil {
			return err
		}
		for day, minutes := range ledger.DailyMinutes {
			if err := daily.Put([]byte(day), []byte(strconv.Itoa(minutes))); err != nil {
				return err
			}
		}

		sessions, err := resetBucket(tx, bucketUsageSessions)
		if err != nil {
			return err
		}
		for i, record := range ledger.Sessions {
			data, err := marshal(record)
			if err != nil {
				return err
			}
			if err := sessions.Put([]byte(fmt.Sprintf("%06d", i)), data); err != nil {
				return err
			}
		}
		return nil
	})
}
