package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/punchclock/internal/format"
	"github.com/goodtune/punchclock/internal/idle"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/session"
	"github.com/goodtune/punchclock/internal/tui"
)

var errQuit = errors.New("quit")

// shell interprets the agent's line commands.
type shell struct {
	tracker tui.Tracker
	stats   tui.StatsSource
	now     func() time.Time
}

const shellHelp = `commands:
  start                    open a session
  stop [grace]             close the session (grace such as 5m, default from config)
  break <kind> [minutes]   tea, full, meeting-short, meeting-long, custom
  activity <kind>          pointer-move, pointer-down, key-down, scroll
  status                   show the session and today's totals
  quit                     exit the agent`

// run reads commands from in until EOF or quit.
func (s *shell) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		reply, err := s.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

func (s *shell) exec(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "start":
		sess, err := s.tracker.Start(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("started %s at %s", sess.ID, format.Clock(&sess.StartedAt)), nil

	case "stop":
		var grace time.Duration
		if len(args) > 0 {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return "", fmt.Errorf("invalid grace %q: %w", args[0], err)
			}
			grace = d
		}
		err := s.tracker.Stop(ctx, grace)
		var stopErr *session.SessionStopError
		if errors.As(err, &stopErr) {
			return "stopped locally; server confirmation pending", nil
		}
		if err != nil {
			return "", err
		}
		return "stopped", nil

	case "break":
		if len(args) == 0 {
			return "", errors.New("usage: break <kind> [minutes]")
		}
		kind, err := model.ParseBreakKind(args[0])
		if err != nil {
			return "", err
		}
		minutes := 0
		if len(args) > 1 {
			if minutes, err = strconv.Atoi(args[1]); err != nil {
				return "", fmt.Errorf("invalid minutes %q", args[1])
			}
		}
		brk, err := s.tracker.TakeBreak(ctx, kind, minutes)
		if err != nil {
			return "", err
		}
		if brk == nil {
			return "break not recorded", nil
		}
		return fmt.Sprintf("%s break %s - %s", brk.Kind, format.Clock(&brk.Start), format.Clock(&brk.End)), nil

	case "activity":
		if len(args) == 0 {
			return "", errors.New("usage: activity <kind>")
		}
		kind, ok := idle.ParseActivityKind(args[0])
		if !ok {
			return "", fmt.Errorf("invalid activity kind: %q", args[0])
		}
		s.tracker.Activity(ctx, kind, s.now())
		return "", nil

	case "status":
		return s.status(), nil

	case "help", "?":
		return shellHelp, nil

	case "quit", "exit":
		return "", errQuit

	default:
		return "", fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (s *shell) status() string {
	var b strings.Builder

	st := s.tracker.Status()
	fmt.Fprintf(&b, "state:   %s\n", st.State)
	if st.Session != nil {
		fmt.Fprintf(&b, "session: %s since %s (%s)\n", st.Session.ID, format.Clock(&st.Session.StartedAt), format.Duration(st.Elapsed))
		fmt.Fprintf(&b, "breaks:  %d  idle intervals: %d\n", len(st.Session.Breaks), len(st.Session.Idles))
	}

	if s.stats != nil {
		if snap := s.stats.Snapshot(); snap != nil {
			fmt.Fprintf(&b, "today:   active %s  total %s  idle %s  breaks %s (synced %s)\n",
				format.Duration(snap.ActiveTime), format.Duration(snap.TotalTime),
				format.Short(snap.IdleTime), format.Short(snap.BreakTime),
				format.Ago(&snap.FetchedAt, s.now()))
		}
		if day := s.stats.Day(); day != nil {
			fmt.Fprintf(&b, "punch:   in %s  out %s  last break %s - %s\n",
				format.Clock(day.LastPunchIn), format.Clock(day.LastPunchOut),
				format.Clock(day.LastBreakStart), format.Clock(day.LastBreakEnd))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
