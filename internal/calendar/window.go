package calendar

import (
	"fmt"
	"time"
)

// Window is the fixed daily interval during which check-in is accepted.
// Both bounds are inclusive and measured from midnight in Location.
type Window struct {
	Location *time.Location
	Start    time.Duration
	End      time.Duration
}

// DefaultWindow returns the 09:30:00–09:45:00 window in loc.
func DefaultWindow(loc *time.Location) Window {
	return Window{
		Location: loc,
		Start:    9*time.Hour + 30*time.Minute,
		End:      9*time.Hour + 45*time.Minute,
	}
}

// NewWindow builds a window from "HH:MM" or "HH:MM:SS" bounds.
func NewWindow(loc *time.Location, start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e < s {
		return Window{}, fmt.Errorf("window end %s before start %s", end, start)
	}
	return Window{Location: loc, Start: s, End: e}, nil
}

// IsOpen reports whether now falls inside the window in the reference zone.
func (w Window) IsOpen(now time.Time) bool {
	tod := SinceMidnight(now.In(w.Location))
	return tod >= w.Start && tod <= w.End
}

// Today returns the current civil date in the reference zone.
func (w Window) Today(now time.Time) time.Time {
	return DateIn(now, w.Location)
}

// String renders the window as "09:30:00-09:45:00 Asia/Kolkata".
func (w Window) String() string {
	return fmt.Sprintf("%s-%s %s", formatClock(w.Start), formatClock(w.End), w.Location)
}

// SinceMidnight returns the wall-clock offset of t from the start of its day.
func SinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return SinceMidnight(t), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", s)
}

func formatClock(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
