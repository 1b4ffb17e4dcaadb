package resolver

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/parkbook/internal/dates"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		label string
		want  civil.Date
	}{
		{"Friday 13 September 2024", date(2024, 9, 13)},
		{"Monday 02 September 2024", date(2024, 9, 2)},
		{"Monday 2 September 2024", date(2024, 9, 2)},
		{"  Friday  13 September 2024 ", date(2024, 9, 13)},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseOption(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOption("Select a date")
	assert.ErrorContains(t, err, "unrecognised date option")
	_, err = ParseOption("2024-09-13")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	offered := []string{
		"Select a date",
		"Tuesday 10 September 2024",
		"Wednesday 11 September 2024",
		"Thursday 12 September 2024",
		"Friday 13 September 2024",
		"Monday 16 September 2024",
	}
	cutoff := dates.MustCutoff("08:30")

	tests := []struct {
		name string
		req  Request
		in   []string
		want []string
	}{
		{
			name: "single desired date",
			in:   []string{"Friday 13 September 2024"},
			req: Request{
				Desired: dates.NewSet(date(2024, 9, 13)),
				Now:     at(2024, 9, 10, 12, 0),
				Cutoff:  cutoff,
			},
			want: []string{"Friday 13 September 2024"},
		},
		{
			name: "already booked",
			in:   []string{"Friday 13 September 2024"},
			req: Request{
				Desired:  dates.NewSet(date(2024, 9, 13)),
				Existing: []civil.Date{date(2024, 9, 13)},
				Now:      at(2024, 9, 10, 12, 0),
				Cutoff:   cutoff,
			},
			want: []string{},
		},
		{
			name: "today after cutoff",
			in:   offered,
			req: Request{
				Desired: dates.NewSet(date(2024, 9, 13), date(2024, 9, 16)),
				Now:     at(2024, 9, 13, 9, 0),
				Cutoff:  cutoff,
			},
			want: []string{"Monday 16 September 2024"},
		},
		{
			name: "today before cutoff",
			in:   offered,
			req: Request{
				Desired: dates.NewSet(date(2024, 9, 13)),
				Now:     at(2024, 9, 13, 8, 0),
				Cutoff:  cutoff,
			},
			want: []string{"Friday 13 September 2024"},
		},
		{
			name: "exclusion wins over desire",
			in:   offered,
			req: Request{
				Desired:    dates.NewSet(date(2024, 9, 11), date(2024, 9, 12)),
				Exclusions: dates.NewSet(date(2024, 9, 11)),
				Now:        at(2024, 9, 10, 12, 0),
				Cutoff:     cutoff,
			},
			want: []string{"Thursday 12 September 2024"},
		},
		{
			name: "offered order is kept",
			in:   offered,
			req: Request{
				Desired: dates.NewSet(date(2024, 9, 16), date(2024, 9, 11)),
				Now:     at(2024, 9, 10, 12, 0),
			},
			want: []string{"Wednesday 11 September 2024", "Monday 16 September 2024"},
		},
		{
			name: "weekday preference",
			in:   offered,
			req: Request{
				Weekdays:   []time.Weekday{time.Wednesday, time.Friday},
				Exclusions: dates.NewSet(date(2024, 9, 13)),
				Now:        at(2024, 9, 10, 12, 0),
			},
			want: []string{"Wednesday 11 September 2024"},
		},
		{
			name: "past dates are skipped",
			in:   offered,
			req: Request{
				Desired: dates.NewSet(date(2024, 9, 10), date(2024, 9, 12)),
				Now:     at(2024, 9, 11, 7, 0),
			},
			want: []string{"Thursday 12 September 2024"},
		},
		{
			name: "duplicate offers collapse",
			in:   []string{"Friday 13 September 2024", "Friday 13 September 2024"},
			req: Request{
				Desired: dates.NewSet(date(2024, 9, 13)),
				Now:     at(2024, 9, 10, 12, 0),
			},
			want: []string{"Friday 13 September 2024"},
		},
		{
			name: "nothing desired",
			in:   offered,
			req:  Request{Now: at(2024, 9, 10, 12, 0)},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.in, tt.req)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveNeverReturnsExcludedOrExisting(t *testing.T) {
	offered := []string{}
	desired := dates.Set{}
	start := date(2024, 9, 16)
	for i := 0; i < 14; i++ {
		d := start.AddDays(i)
		desired.Add(d)
		offered = append(offered, d.In(time.UTC).Format("Monday 2 January 2006"))
	}
	excluded := dates.NewSet(start.AddDays(1), start.AddDays(5))
	existing := []civil.Date{start, start.AddDays(5), start.AddDays(9)}

	got := Resolve(offered, Request{
		Desired:    desired,
		Existing:   existing,
		Exclusions: excluded,
		Now:        at(2024, 9, 16, 10, 0),
		Cutoff:     dates.MustCutoff("08:30"),
	})

	assert.Len(t, got, 10)
	for _, label := range got {
		d, err := ParseOption(label)
		require.NoError(t, err)
		assert.False(t, excluded.Contains(d), "excluded date %s returned", d)
		for _, e := range existing {
			assert.NotEqual(t, e, d, "booked date %s returned", d)
		}
	}
}
