// Package resolver decides which of the site's offered dates still need a booking.
package resolver

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/xkilldash9x/parkbook/internal/dates"
)

// The site renders options as "Friday 13 September 2024"; some revisions pad the day.
var optionLayouts = []string{
	"Monday 2 January 2006",
	"Monday 02 January 2006",
}

// ParseOption converts an offered date label into a calendar date.
func ParseOption(label string) (civil.Date, error) {
	label = strings.Join(strings.Fields(label), " ")
	for _, layout := range optionLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognised date option %q", label)
}

// Request carries everything a resolution depends on. Existing must come from a
// ledger read taken just before the call.
type Request struct {
	Desired    dates.Set
	Weekdays   []time.Weekday
	Existing   []civil.Date
	Exclusions dates.Set
	Now        time.Time
	Cutoff     dates.Cutoff
}

func (r Request) wants(d civil.Date) bool {
	if r.Desired.Contains(d) {
		return true
	}
	wd := d.Weekday()
	for _, w := range r.Weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// Resolve returns the offered labels that still need booking, in the order the
// site offered them. Each date appears at most once. Labels that are not dates
// (placeholders such as "Select a date") are ignored.
func Resolve(offered []string, req Request) []string {
	existing := dates.NewSet(req.Existing...)
	today := dates.Today(req.Now)
	seen := make(map[civil.Date]bool)

	out := []string{}
	for _, label := range offered {
		d, err := ParseOption(label)
		if err != nil {
			continue
		}
		switch {
		case seen[d],
			!req.wants(d),
			existing.Contains(d),
			dates.IsExcluded(d, req.Exclusions),
			d.Before(today),
			dates.CutoffPassed(d, req.Now, req.Cutoff):
			continue
		}
		seen[d] = true
		out = append(out, label)
	}
	return out
}
