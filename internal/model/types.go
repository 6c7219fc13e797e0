package model

import (
	"fmt"
	"strings"
	"time"
)

// BreakKind identifies one of the user-declared break types.
type BreakKind string

const (
	BreakTea          BreakKind = "tea"
	BreakFull         BreakKind = "full"
	BreakMeetingShort BreakKind = "meeting-short"
	BreakMeetingLong  BreakKind = "meeting-long"
	BreakCustom       BreakKind = "custom"
)

// BreakKinds lists every kind in menu order.
var BreakKinds = []BreakKind{BreakTea, BreakFull, BreakMeetingShort, BreakMeetingLong, BreakCustom}

// DefaultDuration returns the preset length for fixed kinds and zero for custom.
func (k BreakKind) DefaultDuration() time.Duration {
	switch k {
	case BreakTea:
		return 15 * time.Minute
	case BreakFull:
		return 60 * time.Minute
	case BreakMeetingShort:
		return 30 * time.Minute
	case BreakMeetingLong:
		return 60 * time.Minute
	default:
		return 0
	}
}

// Fixed reports whether the kind has a preset duration.
func (k BreakKind) Fixed() bool {
	return k.DefaultDuration() > 0
}

// Valid reports whether k is one of BreakKinds.
func (k BreakKind) Valid() bool {
	for _, known := range BreakKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseBreakKind normalizes user input into a BreakKind.
func ParseBreakKind(s string) (BreakKind, error) {
	k := BreakKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("invalid break kind: %q", s)
	}
	return k, nil
}

// Interval is a detected span of inactivity. It is only ever reported after it ended.
type Interval struct {
	Start time.Time `json:"startedAt"`
	End   time.Time `json:"endedAt"`
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether i and other share any instant of positive length.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Subtract removes other from i, returning zero, one or two remaining pieces.
func (i Interval) Subtract(other Interval) []Interval {
	if !i.Overlaps(other) {
		return []Interval{i}
	}
	var out []Interval
	if i.Start.Before(other.Start) {
		out = append(out, Interval{Start: i.Start, End: other.Start})
	}
	if other.End.Before(i.End) {
		out = append(out, Interval{Start: other.End, End: i.End})
	}
	return out
}

// Break is a user-declared pause with a precomputed end.
type Break struct {
	Kind  BreakKind `json:"type"`
	Start time.Time `json:"startedAt"`
	End   time.Time `json:"endedAt"`
}

// Window returns the break as an interval.
func (b Break) Window() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// Session is one punch-in to punch-out work period.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Breaks    []Break    `json:"breaks"`
	Idles     []Interval `json:"idles"`
}

// Open reports whether the session has not ended.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// Elapsed returns the authoritative elapsed time at now.
func (s *Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}

// Snapshot is the day's aggregate durations as last confirmed by the remote service.
type Snapshot struct {
	ActiveTime time.Duration `json:"active_time"`
	TotalTime  time.Duration `json:"total_time"`
	IdleTime   time.Duration `json:"idle_time"`
	BreakTime  time.Duration `json:"break_time"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// RemoteBreak is a break as listed by the remote session list.
type RemoteBreak struct {
	StartedAt *time.Time `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
}

// RemoteSession is a session as listed by the remote session list.
type RemoteSession struct {
	StartedAt *time.Time    `json:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt"`
	Breaks    []RemoteBreak `json:"breaks"`
}

// DayView holds presentation values derived from today's session list.
type DayView struct {
	Sessions       []RemoteSession
	LastBreakStart *time.Time
	LastBreakEnd   *time.Time
	LastPunchIn    *time.Time
	LastPunchOut   *time.Time
	Open           bool
	FetchedAt      time.Time
}
