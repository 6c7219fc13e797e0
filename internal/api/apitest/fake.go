// Package apitest provides an in-memory time-tracking service for tests.
package apitest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/punchclock/internal/model"
)

// ErrUnavailable is returned by a Fake endpoint configured to fail.
var ErrUnavailable = errors.New("apitest: service unavailable")

// Call records one request received by the Fake.
type Call struct {
	Endpoint  string
	Email     string
	SessionID string
	Kind      model.BreakKind
	Grace     time.Duration
	StartedAt time.Time
	EndedAt   time.Time
}

// Fake implements api.Client and records every call.
type Fake struct {
	mu sync.Mutex

	calls    []Call
	failures map[string]int
	nextID   int

	// Stats and Sessions are returned by the read endpoints.
	Stats    model.Snapshot
	Sessions []model.RemoteSession

	// StartHook runs inside StartSession before it returns, if set.
	StartHook func()

	// BreakHook runs inside StartBreak before it returns, if set.
	BreakHook func()
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{failures: make(map[string]int)}
}

// Fail makes the next n calls to endpoint return ErrUnavailable. n < 0 fails forever.
func (f *Fake) Fail(endpoint string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[endpoint] = n
}

// Calls returns a copy of every recorded call.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded calls for one endpoint.
func (f *Fake) CallsTo(endpoint string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if n, ok := f.failures[c.Endpoint]; ok && n != 0 {
		if n > 0 {
			f.failures[c.Endpoint] = n - 1
		}
		return ErrUnavailable
	}
	return nil
}

func (f *Fake) StartSession(ctx context.Context, email string) (string, error) {
	if err := f.record(Call{Endpoint: "start", Email: email}); err != nil {
		return "", err
	}
	if f.StartHook != nil {
		f.StartHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("session-%d", f.nextID), nil
}

func (f *Fake) StopSession(ctx context.Context, sessionID string, grace time.Duration) error {
	return f.record(Call{Endpoint: "stop", SessionID: sessionID, Grace: grace})
}

func (f *Fake) ReportIdle(ctx context.Context, sessionID string, interval model.Interval) error {
	return f.record(Call{Endpoint: "idle", SessionID: sessionID, StartedAt: interval.Start, EndedAt: interval.End})
}

func (f *Fake) StartBreak(ctx context.Context, sessionID string, kind model.BreakKind, startedAt time.Time) error {
	if err := f.record(Call{Endpoint: "break/start", SessionID: sessionID, Kind: kind, StartedAt: startedAt}); err != nil {
		return err
	}
	if f.BreakHook != nil {
		f.BreakHook()
	}
	return nil
}

func (f *Fake) EndBreak(ctx context.Context, sessionID string, endedAt time.Time) error {
	return f.record(Call{Endpoint: "break/end", SessionID: sessionID, EndedAt: endedAt})
}

func (f *Fake) TodayStats(ctx context.Context, email string) (*model.Snapshot, error) {
	if err := f.record(Call{Endpoint: "stats", Email: email}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.Stats
	return &snap, nil
}

func (f *Fake) TodaySessions(ctx context.Context, email string) ([]model.RemoteSession, error) {
	if err := f.record(Call{Endpoint: "sessions", Email: email}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RemoteSession, len(f.Sessions))
	copy(out, f.Sessions)
	return out, nil
}
