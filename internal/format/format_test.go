package format

import (
	"testing"
	"time"
)

func TestMillis(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{"zero", 0, "00:00:00"},
		{"negative clamps", -5000, "00:00:00"},
		{"sub-second truncates", 999, "00:00:00"},
		{"seconds", 45_000, "00:00:45"},
		{"minutes and seconds", 31*60_000 + 7_000, "00:31:07"},
		{"hours", 8*3_600_000 + 15*60_000, "08:15:00"},
		{"over a day", 26 * 3_600_000, "26:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Millis(tt.ms); got != tt.want {
				t.Errorf("Millis(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}

func TestShort(t *testing.T) {
	if got := Short(12 * time.Minute); got != "12m" {
		t.Errorf("Short(12m) = %q", got)
	}
	if got := Short(65 * time.Minute); got != "1h 05m" {
		t.Errorf("Short(65m) = %q", got)
	}
	if got := Short(-time.Minute); got != "0m" {
		t.Errorf("Short(-1m) = %q", got)
	}
}

func TestClockPlaceholder(t *testing.T) {
	if got := Clock(nil); got != Placeholder {
		t.Errorf("Clock(nil) = %q, want %q", got, Placeholder)
	}
	var zero time.Time
	if got := Clock(&zero); got != Placeholder {
		t.Errorf("Clock(zero) = %q, want %q", got, Placeholder)
	}
}

func TestAgo(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	then := now.Add(-3 * time.Minute)

	if got := Ago(&then, now); got != "3 minutes ago" {
		t.Errorf("Ago = %q, want %q", got, "3 minutes ago")
	}
	if got := Ago(nil, now); got != "never" {
		t.Errorf("Ago(nil) = %q, want never", got)
	}
}
