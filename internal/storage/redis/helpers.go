package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/storage"
)

// parsePendingBreak converts a Redis hash to PendingBreak
func parsePendingBreak(data map[string]string) (*storage.PendingBreak, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	endedAt, err := time.Parse(time.RFC3339Nano, data["ended_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse ended_at: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	beginSent, err := strconv.ParseBool(data["begin_sent"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse begin_sent: %w", err)
	}

	attempts, err := strconv.Atoi(data["attempts"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse attempts: %w", err)
	}

	return &storage.PendingBreak{
		Key:       data["key"],
		SessionID: data["session_id"],
		Kind:      model.BreakKind(data["kind"]),
		StartedAt: startedAt,
		EndedAt:   endedAt,
		BeginSent: beginSent,
		Attempts:  attempts,
		CreatedAt: createdAt,
	}, nil
}

// parseSnapshot converts a Redis hash to Snapshot
func parseSnapshot(data map[string]string) (*model.Snapshot, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	fields := []string{"active_ms", "total_ms", "idle_ms", "break_ms"}
	values := make([]time.Duration, len(fields))
	for i, field := range fields {
		ms, err := strconv.ParseInt(data[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", field, err)
		}
		values[i] = time.Duration(ms) * time.Millisecond
	}

	fetchedAt, err := time.Parse(time.RFC3339Nano, data["fetched_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse fetched_at: %w", err)
	}

	return &model.Snapshot{
		ActiveTime: values[0],
		TotalTime:  values[1],
		IdleTime:   values[2],
		BreakTime:  values[3],
		FetchedAt:  fetchedAt,
	}, nil
}
