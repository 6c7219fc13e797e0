package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/punchclock/internal/config"
	"github.com/goodtune/punchclock/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	outboxStore   *outboxStore
	snapshotStore *snapshotStore
}

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

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "punchclock"
	}

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

	keys := keyspace{prefix: prefix}
	store := &Store{
		client:        client,
		outboxStore:   &outboxStore{client: client, keys: keys},
		snapshotStore: &snapshotStore{client: client, keys: keys},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Outbox returns the OutboxStore implementation
func (s *Store) Outbox() storage.OutboxStore {
	return s.outboxStore
}

// Snapshots returns the SnapshotStore implementation
func (s *Store) Snapshots() storage.SnapshotStore {
	return s.snapshotStore
}

type keyspace struct {
	prefix string
}

func (k keyspace) outboxItem(key string) string {
	return fmt.Sprintf("%s:outbox:%s", k.prefix, key)
}

func (k keyspace) outboxIndex() string {
	return k.prefix + ":outbox:index"
}

func (k keyspace) snapshot(email string) string {
	return fmt.Sprintf("%s:snapshot:%s", k.prefix, email)
}
