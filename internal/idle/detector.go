package idle

import (
	"sync"
	"time"

	"github.com/goodtune/punchclock/internal/model"
	"github.com/rs/zerolog"
)

const (
	// DefaultThreshold is the inactivity after which the user counts as idle.
	DefaultThreshold = 30 * time.Second

	// DefaultBuffer is the first stretch of inactivity past the threshold that is
	// never counted as idle.
	DefaultBuffer = 1 * time.Second
)

// ActivityKind is a raw user-input signal.
type ActivityKind string

const (
	PointerMove ActivityKind = "pointer-move"
	PointerDown ActivityKind = "pointer-down"
	KeyDown     ActivityKind = "key-down"
	Scroll      ActivityKind = "scroll"
)

// ParseActivityKind validates an activity signal name.
func ParseActivityKind(s string) (ActivityKind, bool) {
	switch k := ActivityKind(s); k {
	case PointerMove, PointerDown, KeyDown, Scroll:
		return k, true
	default:
		return "", false
	}
}

// SessionReader reports whether a session is currently open.
type SessionReader interface {
	SessionOpen() bool
}

// Config holds detector configuration
type Config struct {
	Threshold time.Duration
	Buffer    time.Duration
}

// Detector derives idle intervals from activity signals. It keeps only the last
// activity timestamp, so each Observe call is O(1).
type Detector struct {
	threshold    time.Duration
	buffer       time.Duration
	session      SessionReader
	lastActivity time.Time
	logger       zerolog.Logger
	mu           sync.Mutex
}

// NewDetector creates a new idle detector
func NewDetector(session SessionReader, config Config, logger zerolog.Logger) *Detector {
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}

	return &Detector{
		threshold: config.Threshold,
		buffer:    config.Buffer,
		session:   session,
		logger:    logger.With().Str("component", "idle-detector").Logger(),
	}
}

// Reset sets the baseline activity timestamp, typically the session start.
func (d *Detector) Reset(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastActivity = at
}

// LastActivity returns the most recent activity timestamp.
func (d *Detector) LastActivity() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastActivity
}

// Observe records an activity signal at the given time. When the gap since the
// previous activity exceeded threshold+buffer and a session is open, it returns the
// finished idle interval.
func (d *Detector) Observe(kind ActivityKind, at time.Time) (model.Interval, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	last := d.lastActivity
	if !last.IsZero() && at.Before(last) {
		// Out-of-order signal; the baseline only moves forward.
		return model.Interval{}, false
	}
	d.lastActivity = at

	if last.IsZero() {
		return model.Interval{}, false
	}

	cutoff := d.threshold + d.buffer
	gap := at.Sub(last)
	if gap <= cutoff {
		return model.Interval{}, false
	}

	if d.session != nil && !d.session.SessionOpen() {
		d.logger.Debug().
			Str("kind", string(kind)).
			Dur("gap", gap).
			Msg("Inactivity gap ignored, no open session")
		return model.Interval{}, false
	}

	interval := model.Interval{Start: last.Add(cutoff), End: at}

	d.logger.Debug().
		Str("kind", string(kind)).
		Time("started_at", interval.Start).
		Time("ended_at", interval.End).
		Dur("idle", interval.Duration()).
		Msg("Idle interval detected")

	return interval, true
}
