package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/punchclock/internal/model"
	"github.com/rs/zerolog"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
	ReqID  string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*HTTPClient, func() []recordedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			ReqID:  r.Header.Get("X-Request-ID"),
		}
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		mu.Lock()
		requests = append(requests, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	return client, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	if _, err := NewHTTPClient(Config{BaseURL: "ftp://example.com"}, zerolog.Nop()); err == nil {
		t.Error("expected error for non-HTTP scheme")
	}
}

func TestStartSession(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": "abc123"})
	})

	id, err := client.StartSession(context.Background(), "dev@example.com")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if id != "abc123" {
		t.Errorf("session id = %q, want abc123", id)
	}

	req := requests()[0]
	if req.Method != http.MethodPost || req.Path != "/tracker/start" {
		t.Errorf("request = %s %s, want POST /tracker/start", req.Method, req.Path)
	}
	if req.Body["email"] != "dev@example.com" {
		t.Errorf("email = %v", req.Body["email"])
	}
	if req.ReqID == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestStartSession_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
	}{
		{"success false", http.StatusOK, map[string]any{"success": false, "message": "already open"}},
		{"missing session id", http.StatusOK, map[string]any{"success": true}},
		{"server error", http.StatusInternalServerError, map[string]any{"message": "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.StartSession(context.Background(), "dev@example.com")
			if !errors.Is(err, ErrRejected) {
				t.Fatalf("error = %v, want ErrRejected", err)
			}
			var remoteErr *RemoteError
			if !errors.As(err, &remoteErr) || remoteErr.Status != tt.status {
				t.Errorf("RemoteError = %+v, want status %d", remoteErr, tt.status)
			}
		})
	}
}

func TestStopSession_SendsGraceMs(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	if err := client.StopSession(context.Background(), "abc123", 7*time.Minute); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}

	body := requests()[0].Body
	if body["sessionId"] != "abc123" {
		t.Errorf("sessionId = %v", body["sessionId"])
	}
	if body["graceMs"] != float64(420000) {
		t.Errorf("graceMs = %v, want 420000", body["graceMs"])
	}
}

func TestBreakAndIdleTimestamps(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	loc := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2026, 3, 2, 11, 0, 0, 123_000_000, loc)
	ctx := context.Background()

	if err := client.StartBreak(ctx, "s1", model.BreakTea, start); err != nil {
		t.Fatalf("StartBreak failed: %v", err)
	}
	if err := client.EndBreak(ctx, "s1", start.Add(15*time.Minute)); err != nil {
		t.Fatalf("EndBreak failed: %v", err)
	}
	if err := client.ReportIdle(ctx, "s1", model.Interval{Start: start, End: start.Add(time.Minute)}); err != nil {
		t.Fatalf("ReportIdle failed: %v", err)
	}

	got := requests()
	if got[0].Path != "/tracker/break/start" || got[0].Body["type"] != "tea" {
		t.Errorf("break start request = %+v", got[0])
	}
	if got[0].Body["startedAt"] != "2026-03-02T09:00:00.123Z" {
		t.Errorf("startedAt = %v", got[0].Body["startedAt"])
	}
	if got[1].Path != "/tracker/break/end" || got[1].Body["endedAt"] != "2026-03-02T09:15:00.123Z" {
		t.Errorf("break end request = %+v", got[1])
	}
	if got[2].Path != "/tracker/idle" || got[2].Body["endedAt"] != "2026-03-02T09:01:00.123Z" {
		t.Errorf("idle request = %+v", got[2])
	}
}

func TestTodayStats(t *testing.T) {
	client, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"activeTimeMs": 3_600_000,
			"totalTimeMs":  4_500_000,
			"idleTimeMs":   300_000,
			"breaksTimeMs": 600_000,
		})
	})

	snap, err := client.TodayStats(context.Background(), "dev@example.com")
	if err != nil {
		t.Fatalf("TodayStats failed: %v", err)
	}
	if snap.ActiveTime != time.Hour || snap.TotalTime != 75*time.Minute ||
		snap.IdleTime != 5*time.Minute || snap.BreakTime != 10*time.Minute {
		t.Errorf("snapshot = %+v", snap)
	}

	req := requests()[0]
	if req.Method != http.MethodGet || req.Path != "/tracker/stats/today" || req.Query != "email=dev%40example.com" {
		t.Errorf("request = %+v", req)
	}
}

func TestTodaySessions(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"sessions":[
			{"startedAt":"2026-03-02T08:00:00.000Z","endedAt":null,"breaks":[
				{"startedAt":"2026-03-02T10:00:00.000Z","endedAt":"2026-03-02T10:15:00.000Z"}
			]}
		]}`))
	})

	sessions, err := client.TodaySessions(context.Background(), "dev@example.com")
	if err != nil {
		t.Fatalf("TodaySessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", s.EndedAt)
	}
	if len(s.Breaks) != 1 || s.Breaks[0].EndedAt == nil {
		t.Fatalf("breaks = %+v", s.Breaks)
	}
	want := time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)
	if !s.Breaks[0].EndedAt.Equal(want) {
		t.Errorf("break end = %v, want %v", s.Breaks[0].EndedAt, want)
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 31, 0, time.UTC)
	if got := Timestamp(ts); got != "2026-03-02T09:00:31.000Z" {
		t.Errorf("Timestamp() = %q", got)
	}
}
