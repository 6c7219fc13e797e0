package bolt

import (
	"context"

	"github.com/goodtune/punchclock/internal/model"
	"go.etcd.io/bbolt"
)

type snapshotStore struct {
	db *bbolt.DB
}

func (s *snapshotStore) Save(ctx context.Context, email string, snapshot model.Snapshot) error {
	return putBucketValue(ctx, s.db, bucketSnapshots, email, snapshot)
}

func (s *snapshotStore) Load(ctx context.Context, email string) (*model.Snapshot, error) {
	return getBucketValue[model.Snapshot](ctx, s.db, bucketSnapshots, email)
}
