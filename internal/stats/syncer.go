package stats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/punchclock/internal/api"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/metrics"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultInterval is the time between polls.
const DefaultInterval = 30 * time.Second

// Config holds syncer configuration
type Config struct {
	Email    string
	Interval time.Duration
}

// Syncer periodically fetches today's stats and session list from the remote
// service. Each poll is independent; a failed poll keeps the previous values.
type Syncer struct {
	client    api.Client
	snapshots storage.SnapshotStore
	clock     clock.Clock
	email     string
	interval  time.Duration
	logger    zerolog.Logger

	mu         sync.RWMutex
	snapshot   *model.Snapshot
	day        *model.DayView
	failures   map[string]int
	onDay      []func(context.Context, model.DayView)
	onSnapshot []func(model.Snapshot)

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewSyncer creates a new stats syncer and loads the last persisted snapshot.
// snapshots may be nil.
func NewSyncer(client api.Client, snapshots storage.SnapshotStore, clk clock.Clock, config Config, logger zerolog.Logger) *Syncer {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	s := &Syncer{
		client:    client,
		snapshots: snapshots,
		clock:     clk,
		email:     config.Email,
		interval:  config.Interval,
		logger:    logger.With().Str("component", "stats-syncer").Logger(),
		failures:  make(map[string]int),
		trigger:   make(chan struct{}, 1),
	}

	if snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		snap, err := snapshots.Load(ctx, config.Email)
		switch {
		case err == nil:
			s.snapshot = snap
			s.logger.Debug().Time("fetched_at", snap.FetchedAt).Msg("Loaded persisted snapshot")
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Warn().Err(err).Msg("Failed to load persisted snapshot")
		}
	}

	return s
}

// OnDay registers a hook called after each successful session-list poll.
func (s *Syncer) OnDay(fn func(context.Context, model.DayView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDay = append(s.onDay, fn)
}

// OnSnapshot registers a hook called after each successful stats poll.
func (s *Syncer) OnSnapshot(fn func(model.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSnapshot = append(s.onSnapshot, fn)
}

// Snapshot returns the last confirmed totals, or nil if none were ever fetched.
func (s *Syncer) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	snap := *s.snapshot
	return &snap
}

// Day returns the last derived session-list view, or nil.
func (s *Syncer) Day() *model.DayView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.day == nil {
		return nil
	}
	day := *s.day
	return &day
}

// Start begins polling immediately and then every interval. Calling Start on a
// running syncer does nothing and returns false.
func (s *Syncer) Start() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.run(s.stop)

	s.logger.Info().Dur("interval", s.interval).Msg("Stats polling started")
	return true
}

// Stop ends the polling loop and waits for an in-flight poll to finish.
func (s *Syncer) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.runMu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Stats polling stopped")
}

// Trigger asks a running loop to poll now. It never blocks.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Refresh polls both endpoints once. The returned error joins any
// *SyncPollError from either poll.
func (s *Syncer) Refresh(ctx context.Context) error {
	return errors.Join(s.pollStats(ctx), s.pollSessions(ctx))
}

func (s *Syncer) run(stop <-chan struct{}) {
	defer s.wg.Done()

	s.pollOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pollOnce()
		case <-s.trigger:
			s.pollOnce()
		}
	}
}

func (s *Syncer) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	_ = s.Refresh(ctx)
}

func (s *Syncer) pollStats(ctx context.Context) error {
	snap, err := s.client.TodayStats(ctx, s.email)
	if err != nil {
		return s.failed("stats", err)
	}
	s.succeeded("stats")

	snap.FetchedAt = s.clock.Now()
	metrics.SyncLastSuccess.Set(float64(snap.FetchedAt.Unix()))

	s.mu.Lock()
	s.snapshot = snap
	hooks := append([]func(model.Snapshot){}, s.onSnapshot...)
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, s.email, *snap); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist snapshot")
		}
	}

	s.logger.Debug().
		Dur("active", snap.ActiveTime).
		Dur("total", snap.TotalTime).
		Dur("idle", snap.IdleTime).
		Dur("breaks", snap.BreakTime).
		Msg("Stats refreshed")

	for _, fn := range hooks {
		fn(*snap)
	}
	return nil
}

func (s *Syncer) pollSessions(ctx context.Context) error {
	sessions, err := s.client.TodaySessions(ctx, s.email)
	if err != nil {
		return s.failed("sessions", err)
	}
	s.succeeded("sessions")

	day := DeriveDay(sessions, s.clock.Now())

	s.mu.Lock()
	s.day = &day
	hooks := append([]func(context.Context, model.DayView){}, s.onDay...)
	s.mu.Unlock()

	s.logger.Debug().
		Int("sessions", len(sessions)).
		Bool("open", day.Open).
		Msg("Session list refreshed")

	for _, fn := range hooks {
		fn(ctx, day)
	}
	return nil
}

func (s *Syncer) failed(endpoint string, err error) error {
	metrics.SyncPollsTotal.WithLabelValues(endpoint, "failed").Inc()

	s.mu.Lock()
	s.failures[endpoint]++
	n := s.failures[endpoint]
	s.mu.Unlock()

	s.logger.Warn().
		Err(err).
		Str("endpoint", endpoint).
		Int("consecutive_failures", n).
		Msg("Poll failed, keeping previous values")

	return &SyncPollError{Endpoint: endpoint, Err: err}
}

func (s *Syncer) succeeded(endpoint string) {
	metrics.SyncPollsTotal.WithLabelValues(endpoint, "ok").Inc()

	s.mu.Lock()
	s.failures[endpoint] = 0
	s.mu.Unlock()
}

// Failures returns the consecutive failure count for an endpoint ("stats" or "sessions").
func (s *Syncer) Failures(endpoint string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[endpoint]
}
