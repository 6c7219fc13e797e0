package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/punchclock/internal/clock"
	"github.com/goodtune/punchclock/internal/config"
	"github.com/goodtune/punchclock/internal/format"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/stats"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print today's totals",
	Long:  `Fetch today's totals and session list from the time-tracking service once and print them.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Tracker.Email == "" {
		return errNoEmail
	}

	logger := setupLogger(cfg.Logging, os.Stderr)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	client, err := newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize API client: %w", err)
	}

	syncer := stats.NewSyncer(client, store.Snapshots(), clock.RealClock{}, stats.Config{Email: cfg.Tracker.Email}, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	refreshErr := syncer.Refresh(ctx)
	printStats(os.Stdout, syncer.Snapshot(), syncer.Day(), time.Now())

	// Partial data was still printed; the exit status reports the failure
	return refreshErr
}

func printStats(w io.Writer, snap *model.Snapshot, day *model.DayView, now time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Fprintln(w, "[today]")
	if snap == nil {
		_, _ = yellow.Fprintln(w, "  no totals available")
	} else {
		_, _ = green.Fprintf(w, "  active = %s\n", format.Duration(snap.ActiveTime))
		_, _ = green.Fprintf(w, "  total  = %s\n", format.Duration(snap.TotalTime))
		_, _ = green.Fprintf(w, "  idle   = %s\n", format.Duration(snap.IdleTime))
		_, _ = green.Fprintf(w, "  breaks = %s\n", format.Duration(snap.BreakTime))
		_, _ = fmt.Fprintf(w, "  synced %s\n", format.Ago(&snap.FetchedAt, now))
	}

	_, _ = cyan.Fprintln(w, "\n[sessions]")
	if day == nil {
		_, _ = yellow.Fprintln(w, "  no session list available")
		return
	}
	_, _ = fmt.Fprintf(w, "  count      = %d\n", len(day.Sessions))
	_, _ = fmt.Fprintf(w, "  punch in   = %s\n", format.Clock(day.LastPunchIn))
	_, _ = fmt.Fprintf(w, "  punch out  = %s\n", format.Clock(day.LastPunchOut))
	_, _ = fmt.Fprintf(w, "  last break = %s - %s\n", format.Clock(day.LastBreakStart), format.Clock(day.LastBreakEnd))
	if day.Open {
		_, _ = green.Fprintln(w, "  session open")
	} else {
		_, _ = yellow.Fprintln(w, "  no open session")
	}
}
