// Package memory implements storage.Store in process memory. Nothing survives a
// restart; it is the default for a single desktop agent without Redis.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/storage"
)

// Store implements the storage.Store interface in memory
type Store struct {
	outbox    *outboxStore
	snapshots *snapshotStore
}

// Open creates an empty in-memory store.
func Open() *Store {
	return &Store{
		outbox:    &outboxStore{items: make(map[string]storage.PendingBreak)},
		snapshots: &snapshotStore{items: make(map[string]model.Snapshot)},
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Outbox returns the OutboxStore implementation
func (s *Store) Outbox() storage.OutboxStore {
	return s.outbox
}

// Snapshots returns the SnapshotStore implementation
func (s *Store) Snapshots() storage.SnapshotStore {
	return s.snapshots
}

type outboxStore struct {
	mu    sync.Mutex
	items map[string]storage.PendingBreak
}

func (o *outboxStore) Put(ctx context.Context, pending storage.PendingBreak) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[pending.Key] = pending
	return nil
}

func (o *outboxStore) Get(ctx context.Context, key string) (*storage.PendingBreak, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pending, ok := o.items[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &pending, nil
}

func (o *outboxStore) List(ctx context.Context) ([]storage.PendingBreak, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]storage.PendingBreak, 0, len(o.items))
	for _, pending := range o.items {
		out = append(out, pending)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (o *outboxStore) Delete(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.items, key)
	return nil
}

type snapshotStore struct {
	mu    sync.Mutex
	items map[string]model.Snapshot
}

func (s *snapshotStore) Save(ctx context.Context, email string, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[email] = snapshot
	return nil
}

func (s *snapshotStore) Load(ctx context.Context, email string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.items[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &snapshot, nil
}
