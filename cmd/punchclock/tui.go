package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/config"
	"github.com/goodtune/punchclock/internal/tui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the agent with a terminal interface",
	Long:  `Run the tracking agent with an interactive terminal interface.`,
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Write logs to this file (logs are discarded when empty)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The terminal belongs to the UI; logs must not be interleaved with it
	var out io.Writer = io.Discard
	if tuiLogFile != "" {
		f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	logger := setupLogger(cfg.Logging, out)
	log.Logger = logger

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

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
	defer a.shutdown(0)

	a.syncer.Start()

	events, unsubscribe := a.controller.Subscribe(64)
	defer unsubscribe()

	program := tea.NewProgram(
		tui.New(a.controller, a.syncer, events),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal interface failed: %w", err)
	}
	return nil
}
