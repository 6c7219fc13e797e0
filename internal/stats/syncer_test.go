package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/punchclock/internal/api/apitest"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/storage"
	"github.com/goodtune/punchclock/internal/storage/memory"
	"github.com/rs/zerolog"
)

const email = "dev@example.com"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := t0.Add(d)
	return &t
}

func setupSyncer(t *testing.T, interval time.Duration) (*Syncer, *apitest.Fake, storage.SnapshotStore, *clock.TestClock) {
	t.Helper()

	fake := apitest.NewFake()
	fake.Stats = model.Snapshot{ActiveTime: time.Hour, TotalTime: 90 * time.Minute, IdleTime: 5 * time.Minute, BreakTime: 25 * time.Minute}
	snapshots := memory.Open().Snapshots()
	clk := clock.NewTestClock(t0)

	s := NewSyncer(fake, snapshots, clk, Config{Email: email, Interval: interval}, zerolog.Nop())
	t.Cleanup(s.Stop)
	return s, fake, snapshots, clk
}

func TestRefresh(t *testing.T) {
	s, _, snapshots, _ := setupSyncer(t, time.Hour)
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	snap := s.Snapshot()
	if snap == nil || snap.ActiveTime != time.Hour || !snap.FetchedAt.Equal(t0) {
		t.Fatalf("snapshot = %+v", snap)
	}

	persisted, err := snapshots.Load(ctx, email)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if persisted.TotalTime != 90*time.Minute {
		t.Errorf("persisted TotalTime = %v", persisted.TotalTime)
	}
}

func TestRefresh_FailuresRetainSnapshot(t *testing.T) {
	s, fake, _, clk := setupSyncer(t, time.Hour)
	ctx := context.Background()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	before := s.Snapshot()

	fake.Fail("stats", 3)
	fake.Stats = model.Snapshot{ActiveTime: 2 * time.Hour}

	for i := 0; i < 3; i++ {
		clk.Advance(30 * time.Second)
		err := s.Refresh(ctx)
		var pollErr *SyncPollError
		if !errors.As(err, &pollErr) || pollErr.Endpoint != "stats" {
			t.Fatalf("poll %d: error = %v, want stats SyncPollError", i, err)
		}
		if !errors.Is(err, apitest.ErrUnavailable) {
			t.Errorf("poll %d: error does not wrap cause", i)
		}
	}

	after := s.Snapshot()
	if after.ActiveTime != before.ActiveTime || !after.FetchedAt.Equal(before.FetchedAt) {
		t.Errorf("snapshot changed after failed polls: %+v -> %+v", before, after)
	}
	if n := s.Failures("stats"); n != 3 {
		t.Errorf("Failures = %d, want 3", n)
	}

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh after recovery failed: %v", err)
	}
	if got := s.Snapshot().ActiveTime; got != 2*time.Hour {
		t.Errorf("ActiveTime = %v, want 2h", got)
	}
	if n := s.Failures("stats"); n != 0 {
		t.Errorf("Failures = %d after success, want 0", n)
	}
}

func TestRefresh_EndpointsIndependent(t *testing.T) {
	s, fake, _, _ := setupSyncer(t, time.Hour)
	fake.Sessions = []model.RemoteSession{{StartedAt: at(0)}}
	fake.Fail("sessions", 1)

	err := s.Refresh(context.Background())
	var pollErr *SyncPollError
	if !errors.As(err, &pollErr) || pollErr.Endpoint != "sessions" {
		t.Fatalf("error = %v, want sessions SyncPollError", err)
	}
	if s.Snapshot() == nil {
		t.Error("stats poll should succeed despite sessions failure")
	}
	if s.Day() != nil {
		t.Error("day view set by failed poll")
	}
}

func TestNewSyncer_LoadsPersistedSnapshot(t *testing.T) {
	snapshots := memory.Open().Snapshots()
	saved := model.Snapshot{ActiveTime: 42 * time.Minute, FetchedAt: t0}
	if err := snapshots.Save(context.Background(), email, saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s := NewSyncer(apitest.NewFake(), snapshots, clock.NewTestClock(t0), Config{Email: email}, zerolog.Nop())

	snap := s.Snapshot()
	if snap == nil || snap.ActiveTime != 42*time.Minute {
		t.Errorf("snapshot = %+v, want persisted value", snap)
	}
}

func TestHooks(t *testing.T) {
	s, fake, _, _ := setupSyncer(t, time.Hour)
	fake.Sessions = []model.RemoteSession{{StartedAt: at(0)}}

	var (
		days  []model.DayView
		snaps []model.Snapshot
	)
	s.OnDay(func(ctx context.Context, day model.DayView) { days = append(days, day) })
	s.OnSnapshot(func(snap model.Snapshot) { snaps = append(snaps, snap) })

	_ = s.Refresh(context.Background())
	fake.Fail("sessions", 1)
	_ = s.Refresh(context.Background())

	if len(days) != 1 || !days[0].Open {
		t.Errorf("OnDay calls = %+v, want one open day", days)
	}
	if len(snaps) != 2 {
		t.Errorf("OnSnapshot called %d times, want 2", len(snaps))
	}
}

func TestStart_PollsImmediatelyAndOnTrigger(t *testing.T) {
	s, fake, _, _ := setupSyncer(t, time.Hour)

	if !s.Start() {
		t.Fatal("first Start did not launch the loop")
	}
	if s.Start() {
		t.Error("second Start launched another loop")
	}
	waitForCalls(t, fake, "stats", 1)

	s.Trigger()
	waitForCalls(t, fake, "stats", 2)

	s.Stop()
	s.Stop()

	if n := len(fake.CallsTo("stats")); n != 2 {
		t.Errorf("got %d stats polls, want 2", n)
	}
}

func TestStart_Restart(t *testing.T) {
	s, fake, _, _ := setupSyncer(t, time.Hour)

	s.Start()
	waitForCalls(t, fake, "sessions", 1)
	s.Stop()

	s.Start()
	waitForCalls(t, fake, "sessions", 2)
}

func TestDeriveDay(t *testing.T) {
	tests := []struct {
		name     string
		sessions []model.RemoteSession
		breakIn  *time.Time
		breakOut *time.Time
		punchIn  *time.Time
		punchOut *time.Time
		open     bool
	}{
		{
			name: "empty",
		},
		{
			name: "single open session",
			sessions: []model.RemoteSession{
				{StartedAt: at(0)},
			},
			punchIn: at(0),
			open:    true,
		},
		{
			name: "latest break across sessions",
			sessions: []model.RemoteSession{
				{StartedAt: at(0), EndedAt: at(4 * time.Hour), Breaks: []model.RemoteBreak{
					{StartedAt: at(2 * time.Hour), EndedAt: at(3 * time.Hour)},
				}},
				{StartedAt: at(5 * time.Hour), EndedAt: at(8 * time.Hour), Breaks: []model.RemoteBreak{
					{StartedAt: at(6 * time.Hour), EndedAt: at(6*time.Hour + 15*time.Minute)},
					{StartedAt: at(5*time.Hour + 30*time.Minute), EndedAt: at(5*time.Hour + 45*time.Minute)},
				}},
			},
			breakIn:  at(6 * time.Hour),
			breakOut: at(6*time.Hour + 15*time.Minute),
			punchIn:  at(5 * time.Hour),
			punchOut: at(8 * time.Hour),
		},
		{
			name: "open break has no end",
			sessions: []model.RemoteSession{
				{StartedAt: at(0), Breaks: []model.RemoteBreak{
					{StartedAt: at(time.Hour)},
				}},
			},
			breakIn: at(time.Hour),
			punchIn: at(0),
			open:    true,
		},
		{
			name: "latest by start not list order",
			sessions: []model.RemoteSession{
				{StartedAt: at(5 * time.Hour)},
				{StartedAt: at(0), EndedAt: at(time.Hour)},
			},
			punchIn: at(5 * time.Hour),
			open:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := DeriveDay(tt.sessions, t0)

			assertTime(t, "LastBreakStart", day.LastBreakStart, tt.breakIn)
			assertTime(t, "LastBreakEnd", day.LastBreakEnd, tt.breakOut)
			assertTime(t, "LastPunchIn", day.LastPunchIn, tt.punchIn)
			assertTime(t, "LastPunchOut", day.LastPunchOut, tt.punchOut)
			if day.Open != tt.open {
				t.Errorf("Open = %v, want %v", day.Open, tt.open)
			}
		})
	}
}

func assertTime(t *testing.T, name string, got, want *time.Time) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", name, got, want)
	case !got.Equal(*want):
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}

func waitForCalls(t *testing.T, fake *apitest.Fake, endpoint string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(fake.CallsTo(endpoint)) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s calls", n, endpoint)
}
