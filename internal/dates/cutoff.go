package dates

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Cutoff is a time of day after which same-day bookings are no longer attempted.
// The zero Cutoff is disabled.
type Cutoff struct {
	t     civil.Time
	valid bool
}

// ParseCutoff parses "HH:MM" (or "HH:MM:SS"). An empty string disables the cutoff.
func ParseCutoff(s string) (Cutoff, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cutoff{}, nil
	}
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	t, err := civil.ParseTime(s)
	if err != nil {
		return Cutoff{}, fmt.Errorf("invalid cutoff %q (want HH:MM): %w", strings.TrimSuffix(s, ":00"), err)
	}
	return Cutoff{t: t, valid: true}, nil
}

// MustCutoff is ParseCutoff for constants; it panics on malformed input.
func MustCutoff(s string) Cutoff {
	c, err := ParseCutoff(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Cutoff) Enabled() bool { return c.valid }

func (c Cutoff) String() string {
	if !c.valid {
		return "disabled"
	}
	return fmt.Sprintf("%02d:%02d", c.t.Hour, c.t.Minute)
}

// CutoffPassed reports whether d is today (in now's location) and the time of
// day has reached the cutoff. Dates other than today are never blocked.
func CutoffPassed(d civil.Date, now time.Time, c Cutoff) bool {
	if !c.valid || d != Today(now) {
		return false
	}
	current := civil.TimeOf(now)
	current.Nanosecond = 0
	return !current.Before(c.t)
}
