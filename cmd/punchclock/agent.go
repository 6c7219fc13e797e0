package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/config"
	"github.com/goodtune/punchclock/internal/metrics"
	"github.com/goodtune/punchclock/internal/session"
	"github.com/goodtune/punchclock/internal/systemd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the tracking agent",
	Long: `Run the tracking agent headless. Commands are read line by line from stdin
(start, stop, break, activity, status, quit) so a desktop shell or script can
drive it.`,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Logs go to stderr so stdout stays free for command replies
	logger := setupLogger(cfg.Logging, os.Stderr)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting punchclock agent")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	client, err := newClient(cfg, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to initialize API client: %w", err)
	}

	a, err := newApp(cfg, client, store, clock.RealClock{}, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	// Start the poller right away so totals are visible before the first punch-in
	a.syncer.Start()

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			a.shutdown(0)
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go systemd.RunWatchdog(ctx, logger)
	go reportStatus(ctx, a.controller)

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	sh := &shell{tracker: a.controller, stats: a.syncer, now: time.Now}
	shellDone := make(chan error, 1)
	go func() {
		shellDone <- sh.run(ctx, os.Stdin, os.Stdout)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
	case err := <-shellDone:
		if err != nil {
			logger.Error().Err(err).Msg("Command input failed")
		}
		logger.Info().Msg("Command input closed, stopping...")
	}

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	cancel()
	a.shutdown(0)

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("punchclock agent stopped")
	return nil
}

// reportStatus mirrors controller state into the systemd STATUS= line.
func reportStatus(ctx context.Context, controller *session.Controller) {
	events, unsubscribe := controller.Subscribe(8)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != session.EventState {
				continue
			}
			status := ev.State.String()
			if ev.SessionID != "" {
				status += " " + ev.SessionID
			}
			_ = systemd.NotifyStatus(status)
		}
	}
}
