package breaks

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

var t1 = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, maxAttempts int) (*Scheduler, *apitest.Fake, storage.OutboxStore, *clock.TestClock) {
	t.Helper()

	fake := apitest.NewFake()
	outbox := memory.Open().Outbox()
	clk := clock.NewTestClock(t1)

	s, err := NewScheduler(fake, outbox, clk, Config{MaxAttempts: maxAttempts}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	return s, fake, outbox, clk
}

func TestSchedule_TeaBreakIssuesBothCalls(t *testing.T) {
	s, fake, outbox, _ := newTestScheduler(t, 0)

	brk, err := s.Schedule(context.Background(), "session-1", model.BreakTea, 15)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Endpoint != "break/start" || !calls[0].StartedAt.Equal(t1) || calls[0].Kind != model.BreakTea {
		t.Errorf("begin call = %+v", calls[0])
	}
	if calls[1].Endpoint != "break/end" || !calls[1].EndedAt.Equal(t1.Add(15*time.Minute)) {
		t.Errorf("end call = %+v", calls[1])
	}
	if !brk.End.Equal(t1.Add(15 * time.Minute)) {
		t.Errorf("break end = %v", brk.End)
	}

	items, _ := outbox.List(context.Background())
	if len(items) != 0 {
		t.Errorf("outbox has %d items after delivery, want 0", len(items))
	}
}

func TestSchedule_FixedDurations(t *testing.T) {
	tests := []struct {
		kind    model.BreakKind
		minutes int
		want    time.Duration
	}{
		{model.BreakTea, 0, 15 * time.Minute},
		{model.BreakFull, 0, time.Hour},
		{model.BreakMeetingShort, 0, 30 * time.Minute},
		{model.BreakMeetingLong, 0, time.Hour},
		{model.BreakMeetingShort, 45, 45 * time.Minute},
		{model.BreakCustom, 7, 7 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, fake, _, _ := newTestScheduler(t, 0)

			brk, err := s.Schedule(context.Background(), "session-1", tt.kind, tt.minutes)
			if err != nil {
				t.Fatalf("Schedule failed: %v", err)
			}
			if got := brk.End.Sub(brk.Start); got != tt.want {
				t.Errorf("duration = %v, want %v", got, tt.want)
			}
			end := fake.CallsTo("break/end")
			if len(end) != 1 || !end[0].EndedAt.Equal(brk.Start.Add(tt.want)) {
				t.Errorf("end calls = %+v", end)
			}
		})
	}
}

func TestSchedule_CustomWithoutDurationIssuesNoCalls(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		s, fake, _, _ := newTestScheduler(t, 0)

		brk, err := s.Schedule(context.Background(), "session-1", model.BreakCustom, minutes)
		if !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("minutes=%d: error = %v, want ErrInvalidDuration", minutes, err)
		}
		if brk != nil {
			t.Errorf("minutes=%d: break = %+v, want nil", minutes, brk)
		}
		if calls := fake.Calls(); len(calls) != 0 {
			t.Errorf("minutes=%d: got %d calls, want 0", minutes, len(calls))
		}
	}
}

func TestSchedule_BeginFailureDropsPair(t *testing.T) {
	s, fake, outbox, _ := newTestScheduler(t, 0)
	fake.Fail("break/start", 1)

	brk, err := s.Schedule(context.Background(), "session-1", model.BreakTea, 0)

	var schedErr *BreakScheduleError
	if !errors.As(err, &schedErr) || schedErr.Stage != StageBegin {
		t.Fatalf("error = %v, want begin BreakScheduleError", err)
	}
	if schedErr.Queued() {
		t.Error("begin failure must not be queued")
	}
	if brk != nil {
		t.Errorf("break = %+v, want nil", brk)
	}
	if end := fake.CallsTo("break/end"); len(end) != 0 {
		t.Errorf("end issued without begin: %+v", end)
	}
	items, _ := outbox.List(context.Background())
	if len(items) != 0 {
		t.Errorf("outbox has %d items, want 0", len(items))
	}
}

func TestSchedule_EndFailureQueuesAndFlushes(t *testing.T) {
	s, fake, outbox, clk := newTestScheduler(t, 0)
	ctx := context.Background()
	fake.Fail("break/end", 1)

	brk, err := s.Schedule(ctx, "session-1", model.BreakFull, 0)

	var schedErr *BreakScheduleError
	if !errors.As(err, &schedErr) || !schedErr.Queued() {
		t.Fatalf("error = %v, want queued BreakScheduleError", err)
	}
	if brk == nil {
		t.Fatal("expected the acknowledged break to be returned")
	}

	items, _ := outbox.List(ctx)
	if len(items) != 1 || !items[0].BeginSent || items[0].Attempts != 1 {
		t.Fatalf("outbox = %+v", items)
	}

	clk.Advance(30 * time.Second)
	completed, err := s.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}

	if begins := fake.CallsTo("break/start"); len(begins) != 1 {
		t.Errorf("begin sent %d times, want 1", len(begins))
	}
	ends := fake.CallsTo("break/end")
	if len(ends) != 2 {
		t.Fatalf("end sent %d times, want 2", len(ends))
	}
	if !ends[1].EndedAt.Equal(brk.End) {
		t.Errorf("redelivered end = %v, want original %v", ends[1].EndedAt, brk.End)
	}

	items, _ = outbox.List(ctx)
	if len(items) != 0 {
		t.Errorf("outbox has %d items after flush, want 0", len(items))
	}
}

func TestFlush_AbandonsAfterMaxAttempts(t *testing.T) {
	s, fake, outbox, _ := newTestScheduler(t, 2)
	ctx := context.Background()
	fake.Fail("break/end", -1)

	_, _ = s.Schedule(ctx, "session-1", model.BreakTea, 0)
	_, _ = s.Flush(ctx)
	_, _ = s.Flush(ctx)

	items, _ := outbox.List(ctx)
	if len(items) != 0 {
		t.Errorf("outbox has %d items, want abandoned", len(items))
	}
	if ends := fake.CallsTo("break/end"); len(ends) != 2 {
		t.Errorf("end sent %d times, want 2", len(ends))
	}
}

func TestFlush_SkipsAlreadyDelivered(t *testing.T) {
	s, fake, outbox, _ := newTestScheduler(t, 0)
	ctx := context.Background()

	brk, err := s.Schedule(ctx, "session-1", model.BreakTea, 0)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	// Simulate a stale replay of the delivered pair.
	_ = outbox.Put(ctx, storage.PendingBreak{
		Key:       storage.BreakKey("session-1", brk.Start),
		SessionID: "session-1",
		Kind:      model.BreakTea,
		StartedAt: brk.Start,
		EndedAt:   brk.End,
		BeginSent: true,
	})
	fake.Reset()

	if _, err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("replayed pair sent %d calls, want 0", len(calls))
	}
	items, _ := outbox.List(ctx)
	if len(items) != 0 {
		t.Errorf("outbox has %d items, want 0", len(items))
	}
}

func TestWindow(t *testing.T) {
	brk, err := Window(model.BreakTea, 0, t1)
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if !brk.End.Equal(t1.Add(15 * time.Minute)) {
		t.Errorf("End = %v", brk.End)
	}
	if _, err := Window(model.BreakCustom, 0, t1); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("custom 0 error = %v", err)
	}
}

func TestSchedule_UnknownKindIssuesNoCalls(t *testing.T) {
	s, fake, outbox, _ := newTestScheduler(t, 3)

	brk, err := s.Schedule(context.Background(), "session-1", model.BreakKind("nap"), 20)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("error = %v, want ErrUnknownKind", err)
	}
	if brk != nil {
		t.Errorf("break = %+v, want nil", brk)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("expected no remote calls, got %+v", calls)
	}
	if items, _ := outbox.List(context.Background()); len(items) != 0 {
		t.Errorf("outbox = %+v, want empty", items)
	}
}
