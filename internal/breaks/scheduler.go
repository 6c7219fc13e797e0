package breaks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/punchclock/internal/api"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/metrics"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts bounds redelivery of a pair's end call.
	DefaultMaxAttempts = 10

	// DefaultDeliveredCacheSize is the number of delivered pair keys remembered.
	DefaultDeliveredCacheSize = 256
)

// Config holds scheduler configuration
type Config struct {
	MaxAttempts        int
	DeliveredCacheSize int
}

// Scheduler turns a break request into a begin/end call pair. Both calls are
// issued immediately: the end time is known in advance, so the remote record is
// complete as soon as Schedule returns.
type Scheduler struct {
	client      api.Client
	outbox      storage.OutboxStore
	clock       clock.Clock
	delivered   *lru.Cache[string, time.Time]
	maxAttempts int
	logger      zerolog.Logger
	mu          sync.Mutex
}

// NewScheduler creates a new break scheduler
func NewScheduler(client api.Client, outbox storage.OutboxStore, clk clock.Clock, config Config, logger zerolog.Logger) (*Scheduler, error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.DeliveredCacheSize <= 0 {
		config.DeliveredCacheSize = DefaultDeliveredCacheSize
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	delivered, err := lru.New[string, time.Time](config.DeliveredCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivered cache: %w", err)
	}

	return &Scheduler{
		client:      client,
		outbox:      outbox,
		clock:       clk,
		delivered:   delivered,
		maxAttempts: config.MaxAttempts,
		logger:      logger.With().Str("component", "break-scheduler").Logger(),
	}, nil
}

// Window computes the break window starting at now. Fixed kinds fall back to
// their preset length when minutes is not positive; custom breaks require it.
// Kinds outside model.BreakKinds are rejected.
func Window(kind model.BreakKind, minutes int, now time.Time) (model.Break, error) {
	if !kind.Valid() {
		return model.Break{}, ErrUnknownKind
	}
	duration := time.Duration(minutes) * time.Minute
	if minutes <= 0 {
		if !kind.Fixed() {
			return model.Break{}, ErrInvalidDuration
		}
		duration = kind.DefaultDuration()
	}

	return model.Break{Kind: kind, Start: now, End: now.Add(duration)}, nil
}

// Schedule records a break for the session. It returns ErrInvalidDuration without
// issuing any call for a custom break with no positive duration. On a
// *BreakScheduleError the returned break is non-nil only if the begin call was
// acknowledged.
func (s *Scheduler) Schedule(ctx context.Context, sessionID string, kind model.BreakKind, minutes int) (*model.Break, error) {
	brk, err := Window(kind, minutes, s.clock.Now())
	if err != nil {
		s.logger.Debug().
			Str("session_id", sessionID).
			Str("kind", string(kind)).
			Int("minutes", minutes).
			Msg("Break request rejected")
		return nil, err
	}

	pending := storage.PendingBreak{
		Key:       storage.BreakKey(sessionID, brk.Start),
		SessionID: sessionID,
		Kind:      kind,
		StartedAt: brk.Start,
		EndedAt:   brk.End,
		CreatedAt: brk.Start,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Queue before the first call so a crash mid-pair is redelivered by Flush.
	if err := s.outbox.Put(ctx, pending); err != nil {
		s.logger.Warn().Err(err).Str("key", pending.Key).Msg("Failed to queue break pair")
	}

	if err := s.deliver(ctx, &pending); err != nil {
		var schedErr *BreakScheduleError
		if errors.As(err, &schedErr) && schedErr.Queued() {
			return &brk, err
		}
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("kind", string(kind)).
		Time("started_at", brk.Start).
		Time("ended_at", brk.End).
		Msg("Break recorded")

	return &brk, nil
}

// Flush redelivers queued pairs and returns how many completed.
func (s *Scheduler) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.outbox.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list break outbox: %w", err)
	}

	completed := 0
	for i := range items {
		pending := items[i]

		if _, ok := s.delivered.Get(pending.Key); ok {
			_ = s.outbox.Delete(ctx, pending.Key)
			continue
		}

		if pending.Attempts >= s.maxAttempts {
			s.logger.Error().
				Str("key", pending.Key).
				Str("session_id", pending.SessionID).
				Int("attempts", pending.Attempts).
				Msg("Abandoning break pair after repeated failures")
			metrics.BreaksScheduled.WithLabelValues(string(pending.Kind), "abandoned").Inc()
			_ = s.outbox.Delete(ctx, pending.Key)
			continue
		}

		if err := s.deliver(ctx, &pending); err != nil {
			s.logger.Warn().Err(err).Str("key", pending.Key).Msg("Break pair redelivery failed")
			continue
		}
		completed++
	}

	s.updatePendingGauge(ctx)
	return completed, nil
}

// deliver sends whatever part of the pair is outstanding (must be called with lock held)
func (s *Scheduler) deliver(ctx context.Context, pending *storage.PendingBreak) error {
	kind := string(pending.Kind)

	if !pending.BeginSent {
		if err := s.client.StartBreak(ctx, pending.SessionID, pending.Kind, pending.StartedAt); err != nil {
			// Nothing was recorded remotely; drop the whole pair.
			_ = s.outbox.Delete(ctx, pending.Key)
			metrics.BreaksScheduled.WithLabelValues(kind, "dropped").Inc()
			s.logger.Warn().
				Err(err).
				Str("session_id", pending.SessionID).
				Str("kind", kind).
				Msg("Break begin failed, break dropped")
			return &BreakScheduleError{SessionID: pending.SessionID, Kind: pending.Kind, Stage: StageBegin, Err: err}
		}
		pending.BeginSent = true
	}

	if err := s.client.EndBreak(ctx, pending.SessionID, pending.EndedAt); err != nil {
		pending.Attempts++
		if putErr := s.outbox.Put(ctx, *pending); putErr != nil {
			s.logger.Error().Err(putErr).Str("key", pending.Key).Msg("Failed to persist pending break end")
		}
		metrics.BreaksScheduled.WithLabelValues(kind, "pending").Inc()
		s.updatePendingGauge(ctx)
		s.logger.Warn().
			Err(err).
			Str("session_id", pending.SessionID).
			Str("kind", kind).
			Int("attempts", pending.Attempts).
			Msg("Break end failed, queued for retry")
		return &BreakScheduleError{SessionID: pending.SessionID, Kind: pending.Kind, Stage: StageEnd, Err: err}
	}

	s.delivered.Add(pending.Key, s.clock.Now())
	if err := s.outbox.Delete(ctx, pending.Key); err != nil {
		s.logger.Warn().Err(err).Str("key", pending.Key).Msg("Failed to clear delivered break pair")
	}
	metrics.BreaksScheduled.WithLabelValues(kind, "delivered").Inc()
	s.updatePendingGauge(ctx)

	return nil
}

func (s *Scheduler) updatePendingGauge(ctx context.Context) {
	items, err := s.outbox.List(ctx)
	if err != nil {
		return
	}
	metrics.BreakOutboxPending.Set(float64(len(items)))
}
