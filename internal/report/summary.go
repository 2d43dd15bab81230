// Package report turns a day's attendance into report artifacts and
// delivers them to the administrators.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campus-attendance/backend/internal/models"
)

// Entry is a present participant with the moment they checked in.
type Entry struct {
	User      models.User
	ScannedAt time.Time
}

// Summary is the attendance of one civil date.
type Summary struct {
	Date     time.Time
	Location *time.Location
	Present  []Entry
	Absent   []models.User
}

// Partition splits participants into present and absent by whether they have
// a check-in among rows. Participant order is preserved in both sets; rows of
// users not in participants are ignored.
func Partition(date time.Time, loc *time.Location, participants []models.User, rows []models.CheckInRow) Summary {
	scanned := make(map[uuid.UUID]time.Time, len(rows))
	for _, r := range rows {
		scanned[r.UserID] = r.ScannedAt
	}
	s := Summary{Date: date, Location: loc, Present: []Entry{}, Absent: []models.User{}}
	for _, p := range participants {
		if at, ok := scanned[p.ID]; ok {
			s.Present = append(s.Present, Entry{User: p, ScannedAt: at})
			continue
		}
		s.Absent = append(s.Absent, p)
	}
	return s
}

// Total is the number of participants.
func (s Summary) Total() int { return len(s.Present) + len(s.Absent) }

// Rate is the percentage present, 0 when there are no participants.
func (s Summary) Rate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(len(s.Present)) / float64(s.Total()) * 100
}

// RateString formats Rate with one decimal, e.g. "66.7%".
func (s Summary) RateString() string { return fmt.Sprintf("%.1f%%", s.Rate()) }

// LongDate renders the date as "March 04, 2024".
func (s Summary) LongDate() string { return s.Date.Format("January 02, 2006") }

// Subject is the email subject for the summary.
func (s Summary) Subject() string { return "Daily Attendance Report - " + s.LongDate() }

// ScanTime renders an instant in the summary's zone, e.g. "09:41 AM IST".
func (s Summary) ScanTime(t time.Time) string {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("03:04 PM MST")
}

func department(u models.User) string {
	if u.Department == "" {
		return "N/A"
	}
	return u.Department
}

func fileStem(date time.Time) string {
	return "attendance_report_" + date.Format("20060102")
}
