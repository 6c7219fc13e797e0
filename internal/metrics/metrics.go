package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Remote collaborator metrics
	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchclock_remote_requests_total",
			Help: "Total requests sent to the time-tracking service",
		},
		[]string{"endpoint", "outcome"},
	)

	RemoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "punchclock_remote_request_duration_seconds",
			Help:    "Time-tracking service request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Session metrics
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchclock_session_transitions_total",
			Help: "Session controller state transitions",
		},
		[]string{"from", "to"},
	)

	SessionStartFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "punchclock_session_start_failures_total",
			Help: "Session start attempts rejected or unreachable",
		},
	)

	SessionStopFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "punchclock_session_stop_failures_total",
			Help: "Session stops whose acknowledgement was not received",
		},
	)

	SessionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "punchclock_session_open",
			Help: "1 while a session is being tracked",
		},
	)

	// Idle metrics
	IdleIntervalsReported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchclock_idle_intervals_total",
			Help: "Idle intervals detected, by delivery outcome",
		},
		[]string{"outcome"},
	)

	IdleSecondsReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "punchclock_idle_seconds_total",
			Help: "Total idle seconds reported to the time-tracking service",
		},
	)

	// Break metrics
	BreaksScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchclock_breaks_total",
			Help: "Breaks scheduled, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	BreakOutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "punchclock_break_outbox_pending",
			Help: "Break pairs waiting for delivery of their end call",
		},
	)

	// Sync metrics
	SyncPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchclock_sync_polls_total",
			Help: "Stats sync polls, by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	SyncLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "punchclock_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful stats poll",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		RemoteRequestsTotal,
		RemoteRequestDuration,
		SessionTransitions,
		SessionStartFailures,
		SessionStopFailures,
		SessionOpen,
		IdleIntervalsReported,
		IdleSecondsReported,
		BreaksScheduled,
		BreakOutboxPending,
		SyncPollsTotal,
		SyncLastSuccess,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler exposes the server's mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
