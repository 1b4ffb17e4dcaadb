package dates

import (
	"fmt"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts a full English weekday name or its three-letter
// abbreviation, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[name]; ok {
		return wd, nil
	}
	if len(name) == 3 {
		for full, wd := range weekdayNames {
			if strings.HasPrefix(full, name) {
				return wd, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseWeekdays parses a list of weekday names, ignoring duplicates.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	var out []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, n := range names {
		wd, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		if !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	return out, nil
}
