package bolt

import (
	"context"
	"errors"

	"github.com/goodtune/tokentimer/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Get(ctx context.Context) (*storage.TimerSession, error) {
	return getBucketValue[storage.TimerSession](ctx, s.db, bucketTimer, keyCurrent)
}

func (s *sessionStore) Put(ctx context.Context, session storage.TimerSession) error {
	return putBucketValue(ctx, s.db, bucketTimer, keyCurrent, session)
}

func (s *sessionStore) Clear(ctx context.Context) error {
	err := deleteBucketValue(ctx, s.db, bucketTimer, keyCurrent)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
