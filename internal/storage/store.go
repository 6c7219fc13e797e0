package storage

import (
	"context"
	"errors"

	"github.com/goodtune/punchclock/internal/model"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Outbox() OutboxStore
	Snapshots() SnapshotStore
}

// OutboxStore holds break pairs until both calls have been delivered.
type OutboxStore interface {
	Put(ctx context.Context, pending PendingBreak) error
	Get(ctx context.Context, key string) (*PendingBreak, error)
	List(ctx context.Context) ([]PendingBreak, error)
	Delete(ctx context.Context, key string) error
}

// SnapshotStore keeps the last confirmed stats snapshot per user.
type SnapshotStore interface {
	Save(ctx context.Context, email string, snapshot model.Snapshot) error
	Load(ctx context.Context, email string) (*model.Snapshot, error)
}
