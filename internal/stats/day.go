package stats

import (
	"time"

	"github.com/goodtune/punchclock/internal/model"
)

// DeriveDay computes the presentation values for today's session list: the
// latest break start and end across all sessions, and the punch-in, punch-out
// and open flag of the most recently started session.
func DeriveDay(sessions []model.RemoteSession, fetchedAt time.Time) model.DayView {
	day := model.DayView{Sessions: sessions, FetchedAt: fetchedAt}

	var latest *model.RemoteSession
	for i := range sessions {
		s := &sessions[i]
		for _, brk := range s.Breaks {
			day.LastBreakStart = later(day.LastBreakStart, brk.StartedAt)
			day.LastBreakEnd = later(day.LastBreakEnd, brk.EndedAt)
		}
		if s.StartedAt == nil {
			continue
		}
		if latest == nil || s.StartedAt.After(*latest.StartedAt) {
			latest = s
		}
	}

	if latest != nil {
		day.LastPunchIn = latest.StartedAt
		day.LastPunchOut = latest.EndedAt
		day.Open = latest.EndedAt == nil
	}

	return day
}

func later(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		return candidate
	}
	return current
}
