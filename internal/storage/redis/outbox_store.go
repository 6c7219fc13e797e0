package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/goodtune/punchclock/internal/storage"
	"github.com/redis/go-redis/v9"
)

// pendingBreakTTL bounds how long an undeliverable pair is kept.
const pendingBreakTTL = 7 * 24 * time.Hour

type outboxStore struct {
	client *redis.Client
	keys   keyspace
}

// Put creates or updates a pending break
func (s *outboxStore) Put(ctx context.Context, pending storage.PendingBreak) error {
	script := redis.NewScript(putPendingBreakScript)

	createdAt := pending.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	keys := []string{s.keys.outboxItem(pending.Key), s.keys.outboxIndex()}
	args := []interface{}{
		pending.Key,
		pending.SessionID,
		string(pending.Kind),
		pending.StartedAt.Format(time.RFC3339Nano),
		pending.EndedAt.Format(time.RFC3339Nano),
		strconv.FormatBool(pending.BeginSent),
		pending.Attempts,
		createdAt.Format(time.RFC3339Nano),
		pending.StartedAt.UnixMilli(),
		int64(pendingBreakTTL.Seconds()),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// Get retrieves a pending break by key
func (s *outboxStore) Get(ctx context.Context, key string) (*storage.PendingBreak, error) {
	data, err := s.client.HGetAll(ctx, s.keys.outboxItem(key)).Result()
	if err != nil {
		return nil, err
	}

	return parsePendingBreak(data)
}

// List returns all pending breaks ordered by break start
func (s *outboxStore) List(ctx context.Context) ([]storage.PendingBreak, error) {
	keys, err := s.client.ZRange(ctx, s.keys.outboxIndex(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return []storage.PendingBreak{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, s.keys.outboxItem(key))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	pending := make([]storage.PendingBreak, 0, len(keys))
	var expired []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			// Item expired; drop the dangling index entry below
			expired = append(expired, keys[i])
			continue
		}

		item, err := parsePendingBreak(data)
		if err == nil {
			pending = append(pending, *item)
		}
	}

	if len(expired) > 0 {
		s.client.ZRem(ctx, s.keys.outboxIndex(), expired...)
	}

	return pending, nil
}

// Delete removes a pending break
func (s *outboxStore) Delete(ctx context.Context, key string) error {
	script := redis.NewScript(deletePendingBreakScript)
	keys := []string{s.keys.outboxItem(key), s.keys.outboxIndex()}
	return script.Run(ctx, s.client, keys, key).Err()
}
