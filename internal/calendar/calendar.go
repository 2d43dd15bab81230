// Package calendar holds the reference-zone date arithmetic and the daily
// admission window policy.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for civil dates.
const DateLayout = "2006-01-02"

// DateIn returns the civil date of t in loc, as midnight UTC. Dates are
// stored this way so they compare equal regardless of the zone they came from.
func DateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthDates returns every civil date of the month containing ref, first
// through last day inclusive. ref is read as a civil date in its own zone.
func MonthDates(ref time.Time) []time.Time {
	y, m, _ := ref.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	dates := make([]time.Time, 0, 31)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// ParseMonth parses a YYYY-MM month and returns its first day.
func ParseMonth(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return d, nil
}

// FormatDate formats a civil date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
