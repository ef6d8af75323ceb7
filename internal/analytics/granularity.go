// Package analytics buckets dated entries into calendar-aligned periods and
// derives category breakdowns and balance series from them.
//
// Every function is pure: callers pass the entries and the window, nothing
// here reads a clock or a store.
package analytics

import (
	"strings"

	"cashflow/internal/core"
)

// Component names this package in annotated errors.
const Component = "analytics"

type Granularity string

const (
	Day   Granularity = "DAY"
	Week  Granularity = "WEEK"
	Month Granularity = "MONTH"
	Year  Granularity = "YEAR"
)

func (g Granularity) Valid() bool {
	switch g {
	case Day, Week, Month, Year:
		return true
	}
	return false
}

// ParseGranularity accepts either case.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", core.Invalid("granularity", "must be one of DAY, WEEK, MONTH, YEAR")
	}
	return g, nil
}

// Floor returns the first day of the period containing d. Weeks start on Monday.
func (g Granularity) Floor(d core.Date) core.Date {
	switch g {
	case Week:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDays(-offset)
	case Month:
		return core.NewDate(d.Year(), d.Month(), 1)
	case Year:
		return core.NewDate(d.Year(), 1, 1)
	default:
		return d
	}
}

// Next returns the first day of the period after the one starting at start.
func (g Granularity) Next(start core.Date) core.Date {
	switch g {
	case Week:
		return start.AddDays(7)
	case Month:
		return core.Date{Time: start.AddDate(0, 1, 0)}
	case Year:
		return core.Date{Time: start.AddDate(1, 0, 0)}
	default:
		return start.AddDays(1)
	}
}

// periods partitions [start, end] into contiguous periods clipped to the window.
func periods(start, end core.Date, g Granularity) []Bucket {
	var out []Bucket
	for p := g.Floor(start); !p.After(end.Time); p = g.Next(p) {
		b := Bucket{Start: p, End: g.Next(p).AddDays(-1)}
		if b.Start.Before(start.Time) {
			b.Start = start
		}
		if b.End.After(end.Time) {
			b.End = end
		}
		out = append(out, b)
	}
	return out
}

func validateWindow(start, end core.Date, g Granularity) error {
	if start.IsZero() || end.IsZero() {
		return core.Invalid("startDate", "start and end dates are required")
	}
	if start.After(end.Time) {
		return core.Invalid("startDate", "after endDate")
	}
	if !g.Valid() {
		return core.Invalid("granularity", "must be one of DAY, WEEK, MONTH, YEAR")
	}
	return nil
}

// inWindow reports whether d lies in [start, end].
func inWindow(d, start, end core.Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}
