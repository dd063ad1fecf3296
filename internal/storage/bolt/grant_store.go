package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/tokentimer/internal/storage"
	"go.etcd.io/bbolt"
)

type grantStore struct {
	db *bbolt.DB
}

func (s *grantStore) Get(ctx context.Context, id string) (*storage.ScheduledGrant, error) {
	return getBucketValue[storage.ScheduledGrant](ctx, s.db, bucketGrants, id)
}

func (s *grantStore) List(ctx context.Context) ([]storage.ScheduledGrant, error) {
	grants, err := listBucket[storage.ScheduledGrant](ctx, s.db, bucketGrants)
	if err != nil {
		return nil, err
	}
	storage.SortGrants(grants)
	return grants, nil
}

func (s *grantStore) Upsert(ctx context.Context, grant storage.ScheduledGrant) error {
	if grant.ID == "" {
		return fmt.Errorf("grant id is required")
	}
	return putBucketValue(ctx, s.db, bucketGrants, grant.ID, grant)
}

func (s *grantStore) Delete(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketGrants, id)
}
