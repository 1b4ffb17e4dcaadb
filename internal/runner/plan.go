package runner

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/dates"
	"github.com/xkilldash9x/parkbook/internal/resolver"
)

// Plan is the per-run input that does not change between sessions.
type Plan struct {
	Desired    dates.Set
	Exclusions dates.Set
	Weekdays   []time.Weekday
	Cutoff     dates.Cutoff
	Location   *time.Location
}

// LoadPlan reads the date files and parses the scheduling rules in cfg.
func LoadPlan(cfg config.BookingConfig) (Plan, error) {
	desired, err := dates.LoadFile(cfg.DatesFile)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to load desired dates: %w", err)
	}
	exclusions, err := dates.LoadFile(cfg.ExclusionsFile)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to load exclusions: %w", err)
	}
	weekdays, err := dates.ParseWeekdays(cfg.Weekdays)
	if err != nil {
		return Plan{}, err
	}
	cutoff, err := dates.ParseCutoff(cfg.SameDayCutoff)
	if err != nil {
		return Plan{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Desired:    desired,
		Exclusions: exclusions,
		Weekdays:   weekdays,
		Cutoff:     cutoff,
		Location:   loc,
	}, nil
}

// Preview lists the dates a run starting at now would try to book if the site
// offered every day of the next horizon days and nothing was booked yet.
func (p Plan) Preview(now time.Time, horizon int) []civil.Date {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	today := dates.Today(now)

	offered := make([]string, 0, horizon)
	for i := 0; i < horizon; i++ {
		offered = append(offered, today.AddDays(i).In(loc).Format("Monday 2 January 2006"))
	}
	labels := resolver.Resolve(offered, resolver.Request{
		Desired:    p.Desired,
		Weekdays:   p.Weekdays,
		Exclusions: p.Exclusions,
		Now:        now,
		Cutoff:     p.Cutoff,
	})

	out := make([]civil.Date, 0, len(labels))
	for _, label := range labels {
		if d, err := resolver.ParseOption(label); err == nil {
			out = append(out, d)
		}
	}
	return out
}
