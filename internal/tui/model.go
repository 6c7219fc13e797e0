// Package tui is a Bubble Tea front-end for the session controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/goodtune/punchclock/internal/format"
	"github.com/goodtune/punchclock/internal/idle"
	"github.com/goodtune/punchclock/internal/model"
	"github.com/goodtune/punchclock/internal/session"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true).
			Width(14)

	timerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	stateStyles = map[session.State]lipgloss.Style{
		session.StateIdle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		session.StateStarting: lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		session.StateTracking: lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true),
		session.StateStopping: lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
	}

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("237"))

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Tracker is the subset of the session controller driven by the UI.
type Tracker interface {
	Start(ctx context.Context) (*model.Session, error)
	Stop(ctx context.Context, grace time.Duration) error
	TakeBreak(ctx context.Context, kind model.BreakKind, minutes int) (*model.Break, error)
	Activity(ctx context.Context, kind idle.ActivityKind, at time.Time)
	Status() session.Status
}

// StatsSource exposes the last server-confirmed values.
type StatsSource interface {
	Snapshot() *model.Snapshot
	Day() *model.DayView
}

type mode int

const (
	modeMain mode = iota
	modeBreakMenu
	modeCustomMinutes
)

type eventMsg struct{ event session.Event }

type refreshMsg time.Time

type actionMsg struct {
	text string
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	tracker Tracker
	stats   StatsSource
	events  <-chan session.Event
	now     func() time.Time

	status   session.Status
	snapshot *model.Snapshot
	day      *model.DayView

	mode    mode
	cursor  int
	minutes textinput.Model
	message string
	isError bool
	width   int
}

// New creates a model. events is typically a controller subscription.
func New(tracker Tracker, stats StatsSource, events <-chan session.Event) Model {
	input := textinput.New()
	input.Placeholder = "minutes"
	input.CharLimit = 3

	m := Model{
		tracker: tracker,
		stats:   stats,
		events:  events,
		now:     time.Now,
		minutes: input,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(listenForEvent(m.events), scheduleRefresh())
}

func listenForEvent(ch <-chan session.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.MouseMsg:
		m.tracker.Activity(context.Background(), mouseActivity(msg), m.now())
		return m, nil

	case tea.KeyMsg:
		m.tracker.Activity(context.Background(), idle.KeyDown, m.now())
		return m.handleKey(msg)

	case eventMsg:
		m.applyEvent(msg.event)
		return m, listenForEvent(m.events)

	case refreshMsg:
		m.refresh()
		return m, scheduleRefresh()

	case actionMsg:
		m.refresh()
		if msg.err != nil {
			m.message, m.isError = msg.err.Error(), true
		} else if msg.text != "" {
			m.message, m.isError = msg.text, false
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeBreakMenu:
		return m.handleBreakMenuKey(msg)
	case modeCustomMinutes:
		return m.handleMinutesKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		if m.status.State == session.StateTracking {
			return m, m.stopCmd()
		}
		return m, m.startCmd()
	case "b":
		if m.status.State != session.StateTracking {
			m.message, m.isError = "Start a session before taking a break", true
			return m, nil
		}
		m.mode = modeBreakMenu
		m.cursor = 0
	}
	return m, nil
}

func (m Model) handleBreakMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q":
		m.mode = modeMain
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(model.BreakKinds)-1 {
			m.cursor++
		}
	case "enter":
		kind := model.BreakKinds[m.cursor]
		if kind == model.BreakCustom {
			m.mode = modeCustomMinutes
			m.minutes.SetValue("")
			return m, m.minutes.Focus()
		}
		m.mode = modeMain
		return m, m.breakCmd(kind, 0)
	}
	return m, nil
}

func (m Model) handleMinutesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.minutes.Blur()
		m.mode = modeMain
		return m, nil
	case "enter":
		m.minutes.Blur()
		m.mode = modeMain
		n, err := strconv.Atoi(strings.TrimSpace(m.minutes.Value()))
		if err != nil || n <= 0 {
			m.message, m.isError = "Custom break needs a positive number of minutes", true
			return m, nil
		}
		return m, m.breakCmd(model.BreakCustom, n)
	}

	var cmd tea.Cmd
	m.minutes, cmd = m.minutes.Update(msg)
	return m, cmd
}

func (m Model) startCmd() tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		sess, err := tracker.Start(context.Background())
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("Session %s started", sess.ID)}
	}
}

func (m Model) stopCmd() tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		err := tracker.Stop(context.Background(), 0)
		var stopErr *session.SessionStopError
		if errors.As(err, &stopErr) {
			return actionMsg{err: fmt.Errorf("session stopped locally, server not yet confirmed: %w", stopErr.Err)}
		}
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "Session stopped"}
	}
}

func (m Model) breakCmd(kind model.BreakKind, minutes int) tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		brk, err := tracker.TakeBreak(context.Background(), kind, minutes)
		if err != nil {
			return actionMsg{err: err}
		}
		if brk == nil {
			return actionMsg{err: fmt.Errorf("%s break was not recorded", kind)}
		}
		return actionMsg{text: fmt.Sprintf("%s break until %s", kind, format.Clock(&brk.End))}
	}
}

func (m *Model) applyEvent(ev session.Event) {
	switch ev.Type {
	case session.EventTick:
		m.status.Elapsed = ev.Elapsed
	case session.EventWarning:
		if ev.Err != nil {
			m.message, m.isError = ev.Err.Error(), true
		}
		m.refresh()
	case session.EventIdle:
		if ev.Interval != nil {
			m.message, m.isError = "Idle for "+format.Short(ev.Interval.Duration()), false
		}
		m.refresh()
	default:
		m.refresh()
	}
}

func (m *Model) refresh() {
	m.status = m.tracker.Status()
	if m.stats != nil {
		m.snapshot = m.stats.Snapshot()
		m.day = m.stats.Day()
	}
}

func mouseActivity(msg tea.MouseMsg) idle.ActivityKind {
	switch {
	case tea.MouseEvent(msg).IsWheel():
		return idle.Scroll
	case msg.Action == tea.MouseActionPress:
		return idle.PointerDown
	default:
		return idle.PointerMove
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("punchclock"))
	b.WriteString("\n\n")

	stateStyle, ok := stateStyles[m.status.State]
	if !ok {
		stateStyle = hintStyle
	}
	b.WriteString(row("State", stateStyle.Render(m.status.State.String())))
	if m.status.Session != nil {
		b.WriteString(row("Session", timerStyle.Render(format.Duration(m.status.Elapsed))))
		b.WriteString(row("Started", format.Clock(&m.status.Session.StartedAt)))
	} else {
		b.WriteString(row("Session", hintStyle.Render(format.Duration(0))))
	}
	b.WriteString("\n")

	if m.snapshot != nil {
		b.WriteString(row("Active today", format.Duration(m.snapshot.ActiveTime)))
		b.WriteString(row("Total today", format.Duration(m.snapshot.TotalTime)))
		b.WriteString(row("Idle", format.Short(m.snapshot.IdleTime)))
		b.WriteString(row("Breaks", format.Short(m.snapshot.BreakTime)))
		b.WriteString(row("Synced", format.Ago(&m.snapshot.FetchedAt, m.now())))
	} else {
		b.WriteString(row("Today", hintStyle.Render("waiting for first sync")))
	}

	if m.day != nil {
		b.WriteString(row("Punch in", format.Clock(m.day.LastPunchIn)))
		b.WriteString(row("Punch out", format.Clock(m.day.LastPunchOut)))
		b.WriteString(row("Last break", format.Clock(m.day.LastBreakStart)+" - "+format.Clock(m.day.LastBreakEnd)))
	}
	b.WriteString("\n")

	switch m.mode {
	case modeBreakMenu:
		b.WriteString(infoStyle.Render("Take a break:"))
		b.WriteString("\n")
		for i, kind := range model.BreakKinds {
			label := string(kind)
			if d := kind.DefaultDuration(); d > 0 {
				label += " (" + format.Short(d) + ")"
			}
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> " + label))
			} else {
				b.WriteString("  " + label)
			}
			b.WriteString("\n")
		}
	case modeCustomMinutes:
		b.WriteString(infoStyle.Render("Custom break length: "))
		b.WriteString(m.minutes.View())
		b.WriteString("\n")
	}

	if m.message != "" {
		if m.isError {
			b.WriteString(warnStyle.Render(m.message))
		} else {
			b.WriteString(infoStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render(m.help()))
	return b.String()
}

func (m Model) help() string {
	switch m.mode {
	case modeBreakMenu:
		return "↑/↓ select • enter confirm • esc back"
	case modeCustomMinutes:
		return "enter confirm • esc cancel"
	}
	if m.status.State == session.StateTracking {
		return "s stop • b break • q quit"
	}
	return "s start • q quit"
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}
