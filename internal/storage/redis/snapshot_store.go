package redis

import (
	"context"
	"time"

	"github.com/goodtune/punchclock/internal/model"
	"github.com/redis/go-redis/v9"
)

// snapshotTTL keeps yesterday's totals from lingering into the next working day.
const snapshotTTL = 36 * time.Hour

type snapshotStore struct {
	client *redis.Client
	keys   keyspace
}

// Save replaces the stored snapshot for email
func (s *snapshotStore) Save(ctx context.Context, email string, snapshot model.Snapshot) error {
	key := s.keys.snapshot(email)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"active_ms", snapshot.ActiveTime.Milliseconds(),
		"total_ms", snapshot.TotalTime.Milliseconds(),
		"idle_ms", snapshot.IdleTime.Milliseconds(),
		"break_ms", snapshot.BreakTime.Milliseconds(),
		"fetched_at", snapshot.FetchedAt.Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, snapshotTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// Load retrieves the stored snapshot for email
func (s *snapshotStore) Load(ctx context.Context, email string) (*model.Snapshot, error) {
	data, err := s.client.HGetAll(ctx, s.keys.snapshot(email)).Result()
	if err != nil {
		return nil, err
	}

	return parseSnapshot(data)
}
