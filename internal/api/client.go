package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodtune/punchclock/internal/metrics"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TimestampFormat is the ISO-8601 layout sent to the time-tracking service.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrRejected is wrapped by every RemoteError.
var ErrRejected = errors.New("api: request rejected by remote service")

// RemoteError describes a non-2xx status or a success=false response.
type RemoteError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: remote rejected request (status %d): %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: remote rejected request (status %d)", e.Endpoint, e.Status)
}

func (e *RemoteError) Unwrap() error {
	return ErrRejected
}

// Client is the remote time-tracking collaborator.
type Client interface {
	StartSession(ctx context.Context, email string) (string, error)
	StopSession(ctx context.Context, sessionID string, grace time.Duration) error
	ReportIdle(ctx context.Context, sessionID string, interval model.Interval) error
	StartBreak(ctx context.Context, sessionID string, kind model.BreakKind, startedAt time.Time) error
	EndBreak(ctx context.Context, sessionID string, endedAt time.Time) error
	TodayStats(ctx context.Context, email string) (*model.Snapshot, error)
	TodaySessions(ctx context.Context, email string) ([]model.RemoteSession, error)
}

// Config holds HTTP client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient talks to the time-tracking service over JSON/HTTP.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient creates a client for the service at cfg.BaseURL.
func NewHTTPClient(cfg Config, logger zerolog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme: %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &HTTPClient{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With().Str("component", "api-client").Logger(),
	}, nil
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type startResponse struct {
	envelope
	SessionID string `json:"sessionId"`
}

type statsResponse struct {
	envelope
	ActiveTimeMs int64 `json:"activeTimeMs"`
	TotalTimeMs  int64 `json:"totalTimeMs"`
	IdleTimeMs   int64 `json:"idleTimeMs"`
	BreaksTimeMs int64 `json:"breaksTimeMs"`
}

type sessionsResponse struct {
	envelope
	Sessions []model.RemoteSession `json:"sessions"`
}

func (r *envelope) ok() bool { return r.Success }

type successful interface{ ok() bool }

// StartSession opens a session and returns the id assigned by the service.
func (c *HTTPClient) StartSession(ctx context.Context, email string) (string, error) {
	var resp startResponse
	if err := c.post(ctx, "/tracker/start", map[string]any{"email": email}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", &RemoteError{Endpoint: "/tracker/start", Status: http.StatusOK, Message: "missing sessionId"}
	}
	return resp.SessionID, nil
}

// StopSession closes a session, asking the service to honour grace.
func (c *HTTPClient) StopSession(ctx context.Context, sessionID string, grace time.Duration) error {
	body := map[string]any{
		"sessionId": sessionID,
		"graceMs":   grace.Milliseconds(),
	}
	var resp envelope
	return c.post(ctx, "/tracker/stop", body, &resp)
}

// ReportIdle records a finished idle interval.
func (c *HTTPClient) ReportIdle(ctx context.Context, sessionID string, interval model.Interval) error {
	body := map[string]any{
		"sessionId": sessionID,
		"startedAt": Timestamp(interval.Start),
		"endedAt":   Timestamp(interval.End),
	}
	var resp envelope
	return c.post(ctx, "/tracker/idle", body, &resp)
}

// StartBreak records the beginning of a break.
func (c *HTTPClient) StartBreak(ctx context.Context, sessionID string, kind model.BreakKind, startedAt time.Time) error {
	body := map[string]any{
		"sessionId": sessionID,
		"type":      string(kind),
		"startedAt": Timestamp(startedAt),
	}
	var resp envelope
	return c.post(ctx, "/tracker/break/start", body, &resp)
}

// EndBreak records the end of the session's current break.
func (c *HTTPClient) EndBreak(ctx context.Context, sessionID string, endedAt time.Time) error {
	body := map[string]any{
		"sessionId": sessionID,
		"endedAt":   Timestamp(endedAt),
	}
	var resp envelope
	return c.post(ctx, "/tracker/break/end", body, &resp)
}

// TodayStats fetches the day's aggregate durations.
func (c *HTTPClient) TodayStats(ctx context.Context, email string) (*model.Snapshot, error) {
	var resp statsResponse
	if err := c.get(ctx, "/tracker/stats/today", email, &resp); err != nil {
		return nil, err
	}
	return &model.Snapshot{
		ActiveTime: time.Duration(resp.ActiveTimeMs) * time.Millisecond,
		TotalTime:  time.Duration(resp.TotalTimeMs) * time.Millisecond,
		IdleTime:   time.Duration(resp.IdleTimeMs) * time.Millisecond,
		BreakTime:  time.Duration(resp.BreaksTimeMs) * time.Millisecond,
	}, nil
}

// TodaySessions fetches today's sessions with their breaks.
func (c *HTTPClient) TodaySessions(ctx context.Context, email string) ([]model.RemoteSession, error) {
	var resp sessionsResponse
	if err := c.get(ctx, "/tracker/sessions/today", email, &resp); err != nil {
		return nil, err
	}
	if resp.Sessions == nil {
		return []model.RemoteSession{}, nil
	}
	return resp.Sessions, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body any, out successful) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(endpoint, nil), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *HTTPClient) get(ctx context.Context, endpoint, email string, out successful) error {
	query := url.Values{"email": []string{email}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(endpoint, query), nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	return c.do(req, endpoint, out)
}

func (c *HTTPClient) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *HTTPClient) do(req *http.Request, endpoint string, out successful) error {
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Remote request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "rejected").Inc()
		var env envelope
		_ = json.Unmarshal(data, &env)
		return &RemoteError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.Message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	if !out.ok() {
		metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "rejected").Inc()
		msg := ""
		if env, ok := out.(interface{ message() string }); ok {
			msg = env.message()
		}
		return &RemoteError{Endpoint: endpoint, Status: resp.StatusCode, Message: msg}
	}

	metrics.RemoteRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func (r *envelope) message() string { return r.Message }

// Timestamp formats t as a UTC ISO-8601 instant with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
