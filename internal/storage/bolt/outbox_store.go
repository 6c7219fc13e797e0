package bolt

import (
	"context"
	"sort"

	"github.com/goodtune/punchclock/internal/storage"
	"go.etcd.io/bbolt"
)

type outboxStore struct {
	db *bbolt.DB
}

func (s *outboxStore) Put(ctx context.Context, pending storage.PendingBreak) error {
	return putBucketValue(ctx, s.db, bucketOutbox, pending.Key, pending)
}

func (s *outboxStore) Get(ctx context.Context, key string) (*storage.PendingBreak, error) {
	return getBucketValue[storage.PendingBreak](ctx, s.db, bucketOutbox, key)
}

// List returns all pending breaks ordered by break start
func (s *outboxStore) List(ctx context.Context) ([]storage.PendingBreak, error) {
	items, err := listBucket[storage.PendingBreak](ctx, s.db, bucketOutbox)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].StartedAt.Before(items[j].StartedAt)
	})
	return items, nil
}

func (s *outboxStore) Delete(ctx context.Context, key string) error {
	return deleteBucketValue(ctx, s.db, bucketOutbox, key)
}
