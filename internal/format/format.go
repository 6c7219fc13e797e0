// Package format turns millisecond counts and timestamps into display strings.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Placeholder is shown wherever a value is not yet known.
const Placeholder = "--:--"

// Millis formats a millisecond count as HH:MM:SS. Negative values render as zero.
func Millis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// Duration formats d as HH:MM:SS, truncating sub-second precision.
func Duration(d time.Duration) string {
	return Millis(d.Milliseconds())
}

// Short formats d as "1h 05m" or "12m" for compact labels.
func Short(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// Clock formats a timestamp as a local wall-clock time such as "09:05 AM".
func Clock(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.Local().Format("03:04 PM")
}

// Ago renders t relative to now, e.g. "3 minutes ago".
func Ago(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}
