package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goodtune/punchclock/internal/api"
	"github.com/goodtune/punchclock/internal/breaks"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/config"
	"github.com/goodtune/punchclock/internal/idle"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/session"
	"github.com/goodtune/punchclock/internal/stats"
	"github.com/goodtune/punchclock/internal/storage"
	"github.com/goodtune/punchclock/internal/storage/bolt"
	"github.com/goodtune/punchclock/internal/storage/memory"
	"github.com/goodtune/punchclock/internal/storage/redis"
	"github.com/rs/zerolog"
)

var errNoEmail = errors.New("tracker.email is not configured")

// app wires the tracking engine together.
type app struct {
	store      storage.Store
	scheduler  *breaks.Scheduler
	syncer     *stats.Syncer
	controller *session.Controller
	logger     zerolog.Logger
}

func newApp(cfg *config.Config, client api.Client, store storage.Store, clk clock.Clock, logger zerolog.Logger) (*app, error) {
	if cfg.Tracker.Email == "" {
		return nil, errNoEmail
	}

	scheduler, err := breaks.NewScheduler(client, store.Outbox(), clk, breaks.Config{
		MaxAttempts:        cfg.Tracker.BreakMaxAttempts,
		DeliveredCacheSize: cfg.Tracker.DeliveredCacheSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize break scheduler: %w", err)
	}

	syncer := stats.NewSyncer(client, store.Snapshots(), clk, stats.Config{
		Email:    cfg.Tracker.Email,
		Interval: config.ParseDuration(cfg.Tracker.PollInterval, stats.DefaultInterval),
	}, logger)

	controller := session.NewController(client, scheduler, syncer, clk, session.Config{
		Email:       cfg.Tracker.Email,
		StopGrace:   config.ParseDuration(cfg.Tracker.StopGrace, session.DefaultStopGrace),
		DisplayTick: config.ParseDuration(cfg.Tracker.DisplayTick, session.DefaultDisplayTick),
		Idle: idle.Config{
			Threshold: config.ParseDuration(cfg.Tracker.IdleThreshold, idle.DefaultThreshold),
			Buffer:    config.ParseDuration(cfg.Tracker.IdleBuffer, idle.DefaultBuffer),
		},
	}, logger)

	syncer.OnDay(func(ctx context.Context, day model.DayView) {
		controller.Reconcile(ctx, day)
	})

	return &app{
		store:      store,
		scheduler:  scheduler,
		syncer:     syncer,
		controller: controller,
		logger:     logger,
	}, nil
}

// shutdown stops an open session, then releases timers, poller and storage.
func (a *app) shutdown(grace time.Duration) {
	if a.controller.State() == session.StateTracking {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := a.controller.Stop(ctx, grace); err != nil {
			a.logger.Warn().Err(err).Msg("Session stop on shutdown not confirmed")
		}
		cancel()
	}
	a.controller.Close()
	a.syncer.Stop()

	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

func newClient(cfg *config.Config, logger zerolog.Logger) (*api.HTTPClient, error) {
	return api.NewHTTPClient(api.Config{
		BaseURL: cfg.Server.BaseURL,
		Timeout: config.ParseDuration(cfg.Server.RequestTimeout, 10*time.Second),
	}, logger)
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "memory"
	}

	switch storageType {
	case "memory":
		return memory.Open(), nil
	case "bolt":
		return bolt.Open(cfg.Bolt.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}
