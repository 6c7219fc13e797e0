package session

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/punchclock/internal/api"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/idle"
	"github.com/goodtune/punchclock/internal/metrics"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/rs/zerolog"
)

const (
	// DefaultStopGrace is sent with a stop when the caller gives none.
	DefaultStopGrace = 7 * time.Minute

	// DefaultDisplayTick is the interval between elapsed-time tick events.
	DefaultDisplayTick = 1 * time.Second
)

// State is the controller's position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateTracking
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateTracking:
		return "tracking"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// BreakScheduler records break pairs for a session.
type BreakScheduler interface {
	Schedule(ctx context.Context, sessionID string, kind model.BreakKind, minutes int) (*model.Break, error)
	Flush(ctx context.Context) (int, error)
}

// Poller is the stats sync loop driven by the controller. Start reports whether
// it launched the loop, which polls immediately.
type Poller interface {
	Start() bool
	Stop()
	Trigger()
}

// Config holds controller configuration
type Config struct {
	Email       string
	StopGrace   time.Duration
	DisplayTick time.Duration
	Idle        idle.Config
}

// Status is a point-in-time view of the controller.
type Status struct {
	State   State
	Session *model.Session
	Elapsed time.Duration
}

// Controller owns the session lifecycle. State transitions are serialised under
// mu; remote calls are made with mu released and their results applied only when
// the generation they were issued under is still current.
type Controller struct {
	client      api.Client
	breaks      BreakScheduler
	poller      Poller
	clock       clock.Clock
	detector    *idle.Detector
	events      *broadcaster
	email       string
	stopGrace   time.Duration
	displayTick time.Duration
	logger      zerolog.Logger

	mu          sync.Mutex
	state       State
	session     *model.Session
	generation  uint64
	unconfirmed map[string]struct{}
	tickStop    chan struct{}
	closed      bool
	wg          sync.WaitGroup

	// breaking counts TakeBreak calls in flight; Stop waits for them.
	breaking sync.WaitGroup
}

// NewController creates a new session controller. breaks and poller may be nil.
func NewController(client api.Client, breaks BreakScheduler, poller Poller, clk clock.Clock, config Config, logger zerolog.Logger) *Controller {
	if config.StopGrace <= 0 {
		config.StopGrace = DefaultStopGrace
	}
	if config.DisplayTick <= 0 {
		config.DisplayTick = DefaultDisplayTick
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	c := &Controller{
		client:      client,
		breaks:      breaks,
		poller:      poller,
		clock:       clk,
		events:      newBroadcaster(),
		email:       config.Email,
		stopGrace:   config.StopGrace,
		displayTick: config.DisplayTick,
		logger:      logger.With().Str("component", "session-controller").Logger(),
		unconfirmed: make(map[string]struct{}),
	}
	c.detector = idle.NewDetector(c, config.Idle, logger)

	return c
}

// Subscribe returns a channel of controller events and a function that cancels
// the subscription. Events are dropped for a subscriber whose buffer is full.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

// SessionOpen reports whether a session is being tracked.
func (c *Controller) SessionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateTracking
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the current state with a copy of the open session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state}
	if c.session != nil {
		st.Session = cloneSession(c.session)
		st.Elapsed = c.session.Elapsed(c.clock.Now())
	}
	return st
}

// Start opens a session with the remote service.
func (c *Controller) Start(ctx context.Context) (*model.Session, error) {
	c.mu.Lock()
	if c.closed || c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	c.generation++
	gen := c.generation
	c.setStateLocked(StateStarting)
	c.mu.Unlock()

	id, err := c.client.StartSession(ctx, c.email)

	now := c.clock.Now()
	if err == nil {
		// Baseline before Tracking is visible, so no interval predates the session.
		c.detector.Reset(now)
	}

	c.mu.Lock()
	if c.closed || gen != c.generation || c.state != StateStarting {
		c.mu.Unlock()
		if err == nil {
			c.stopOrphan(ctx, id)
		}
		return nil, &SessionStartError{Err: ErrStartCancelled}
	}

	if err != nil {
		c.setStateLocked(StateIdle)
		c.mu.Unlock()
		metrics.SessionStartFailures.Inc()
		c.logger.Warn().Err(err).Str("email", c.email).Msg("Session start failed")
		return nil, &SessionStartError{Err: err}
	}

	c.session = &model.Session{ID: id, StartedAt: now}
	c.setStateLocked(StateTracking)
	c.startTickerLocked(id, now)
	session := cloneSession(c.session)
	c.mu.Unlock()

	metrics.SessionOpen.Set(1)

	if c.poller != nil && !c.poller.Start() {
		c.poller.Trigger()
	}

	c.logger.Info().
		Str("session_id", id).
		Time("started_at", now).
		Msg("Session started")

	return session, nil
}

// Stop closes the tracked session, or cancels a pending start. A grace of zero or
// less uses the configured default. Local state is cleared whatever the outcome;
// an unacknowledged stop is returned as a *SessionStopError.
func (c *Controller) Stop(ctx context.Context, grace time.Duration) error {
	c.mu.Lock()
	switch c.state {
	case StateStarting:
		c.generation++
		c.setStateLocked(StateIdle)
		c.mu.Unlock()
		c.logger.Info().Msg("Pending session start cancelled")
		return nil
	case StateTracking:
	default:
		c.mu.Unlock()
		return ErrInvalidState
	}

	if grace <= 0 {
		grace = c.stopGrace
	}
	id := c.session.ID
	c.generation++
	c.stopTickerLocked()
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	// A break pair already in flight is delivered before the session closes.
	c.breaking.Wait()

	err := c.client.StopSession(ctx, id, grace)

	c.mu.Lock()
	c.session = nil
	if err != nil {
		c.unconfirmed[id] = struct{}{}
	}
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	metrics.SessionOpen.Set(0)
	if c.poller != nil {
		c.poller.Trigger()
	}

	if err != nil {
		metrics.SessionStopFailures.Inc()
		stopErr := &SessionStopError{SessionID: id, Err: err}
		c.logger.Warn().Err(err).Str("session_id", id).Msg("Session stop not confirmed, will retry")
		c.warn(id, stopErr)
		return stopErr
	}

	c.logger.Info().
		Str("session_id", id).
		Dur("grace", grace).
		Msg("Session stopped")

	return nil
}

// TakeBreak records a break for the tracked session. A custom break without a
// positive duration is ignored. Delivery failures are logged and published as
// warnings; the returned break is nil when nothing was recorded.
func (c *Controller) TakeBreak(ctx context.Context, kind model.BreakKind, minutes int) (*model.Break, error) {
	c.mu.Lock()
	if c.state != StateTracking {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	id := c.session.ID
	c.breaking.Add(1)
	c.mu.Unlock()
	defer c.breaking.Done()

	if kind == model.BreakCustom && minutes <= 0 {
		c.logger.Debug().Str("session_id", id).Msg("Custom break without duration ignored")
		return nil, nil
	}
	if c.breaks == nil {
		return nil, nil
	}

	brk, err := c.breaks.Schedule(ctx, id, kind, minutes)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", id).Str("kind", string(kind)).Msg("Break not fully recorded")
		c.warn(id, err)
		if brk == nil {
			return nil, nil
		}
	}

	c.mu.Lock()
	if c.session != nil && c.session.ID == id {
		c.session.Breaks = append(c.session.Breaks, *brk)
	}
	c.mu.Unlock()

	c.events.publish(Event{Type: EventBreak, State: StateTracking, SessionID: id, Break: brk, At: brk.Start})
	if c.poller != nil {
		c.poller.Trigger()
	}

	return brk, nil
}

// Activity feeds a user-input signal to the idle detector. A finished idle
// interval is clipped against the session's breaks, recorded and reported.
func (c *Controller) Activity(ctx context.Context, kind idle.ActivityKind, at time.Time) {
	interval, ok := c.detector.Observe(kind, at)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.state != StateTracking || c.session == nil {
		c.mu.Unlock()
		return
	}
	pieces := []model.Interval{interval}
	for _, brk := range c.session.Breaks {
		var next []model.Interval
		for _, piece := range pieces {
			next = append(next, piece.Subtract(brk.Window())...)
		}
		pieces = next
	}
	c.session.Idles = append(c.session.Idles, pieces...)
	id := c.session.ID
	c.mu.Unlock()

	for i := range pieces {
		piece := pieces[i]
		c.events.publish(Event{Type: EventIdle, State: StateTracking, SessionID: id, Interval: &piece, At: piece.End})

		if err := c.client.ReportIdle(ctx, id, piece); err != nil {
			metrics.IdleIntervalsReported.WithLabelValues("failed").Inc()
			c.logger.Warn().
				Err(err).
				Str("session_id", id).
				Time("started_at", piece.Start).
				Time("ended_at", piece.End).
				Msg("Failed to report idle interval")
			continue
		}
		metrics.IdleIntervalsReported.WithLabelValues("reported").Inc()
		metrics.IdleSecondsReported.Add(piece.Duration().Seconds())
	}
}

// Reconcile compares local state with the remote session list. While idle it
// re-sends unconfirmed stops if the remote still shows an open session, and
// forgets them once it does not. Queued break pairs are flushed either way.
func (c *Controller) Reconcile(ctx context.Context, day model.DayView) {
	if c.breaks != nil {
		if n, err := c.breaks.Flush(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Break outbox flush failed")
		} else if n > 0 {
			c.logger.Info().Int("completed", n).Msg("Redelivered queued break pairs")
		}
	}

	c.mu.Lock()
	if c.state != StateIdle || len(c.unconfirmed) == 0 {
		c.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(c.unconfirmed))
	for id := range c.unconfirmed {
		ids = append(ids, id)
	}
	if !day.Open {
		for _, id := range ids {
			delete(c.unconfirmed, id)
		}
		c.mu.Unlock()
		c.logger.Info().Strs("session_ids", ids).Msg("Remote shows no open session, unconfirmed stops resolved")
		return
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.client.StopSession(ctx, id, c.stopGrace); err != nil {
			c.logger.Warn().Err(err).Str("session_id", id).Msg("Stop retry failed")
			continue
		}
		c.mu.Lock()
		delete(c.unconfirmed, id)
		c.mu.Unlock()
		c.logger.Info().Str("session_id", id).Msg("Unconfirmed stop delivered")
	}
}

// Unconfirmed returns the session ids whose stop has not been acknowledged.
func (c *Controller) Unconfirmed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.unconfirmed))
	for id := range c.unconfirmed {
		ids = append(ids, id)
	}
	return ids
}

// Close stops the display timer and the poller and closes all subscriptions.
// It does not stop an open session.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.state == StateStarting {
		c.generation++
		c.setStateLocked(StateIdle)
	}
	c.stopTickerLocked()
	c.mu.Unlock()

	c.wg.Wait()
	if c.poller != nil {
		c.poller.Stop()
	}
	c.events.close()
}

// stopOrphan ends a session the remote opened for a start that was cancelled.
func (c *Controller) stopOrphan(ctx context.Context, id string) {
	c.logger.Warn().Str("session_id", id).Msg("Late start acknowledgement, stopping orphaned session")

	if err := c.client.StopSession(ctx, id, c.stopGrace); err != nil {
		c.mu.Lock()
		c.unconfirmed[id] = struct{}{}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to stop orphaned session")
	}
}

func (c *Controller) warn(sessionID string, err error) {
	c.events.publish(Event{
		Type:      EventWarning,
		State:     c.State(),
		SessionID: sessionID,
		Err:       err,
		At:        c.clock.Now(),
	})
}

// setStateLocked must be called with mu held.
func (c *Controller) setStateLocked(next State) {
	prev := c.state
	c.state = next
	metrics.SessionTransitions.WithLabelValues(prev.String(), next.String()).Inc()

	ev := Event{Type: EventState, State: next, At: c.clock.Now()}
	if c.session != nil {
		ev.SessionID = c.session.ID
	}
	c.events.publish(ev)
}

func (c *Controller) startTickerLocked(id string, startedAt time.Time) {
	stop := make(chan struct{})
	c.tickStop = stop
	c.wg.Add(1)
	go c.runTicker(stop, id, startedAt)
}

func (c *Controller) stopTickerLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func (c *Controller) runTicker(stop <-chan struct{}, id string, startedAt time.Time) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.displayTick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := c.clock.Now()
			c.events.publish(Event{
				Type:      EventTick,
				State:     StateTracking,
				SessionID: id,
				Elapsed:   now.Sub(startedAt),
				At:        now,
			})
		}
	}
}

func cloneSession(s *model.Session) *model.Session {
	out := *s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	out.Breaks = append([]model.Break(nil), s.Breaks...)
	out.Idles = append([]model.Interval(nil), s.Idles...)
	return &out
}
