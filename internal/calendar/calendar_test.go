package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthDates(t *testing.T) {
	tests := []struct {
		name      string
		ref       time.Time
		wantFirst string
		wantLast  string
		wantLen   int
	}{
		{"december does not bleed into january", time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), "2024-12-01", "2024-12-31", 31},
		{"leap february", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), "2024-02-01", "2024-02-29", 29},
		{"plain february", time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), "2023-02-01", "2023-02-28", 28},
		{"thirty day month", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "2024-04-01", "2024-04-30", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := MonthDates(tt.ref)
			require.Len(t, dates, tt.wantLen)
			assert.Equal(t, tt.wantFirst, FormatDate(dates[0]))
			assert.Equal(t, tt.wantLast, FormatDate(dates[len(dates)-1]))
			for _, d := range dates {
				assert.Equal(t, tt.ref.Month(), d.Month())
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("31/12/2024")
	assert.Error(t, err)
}

func TestParseMonth(t *testing.T) {
	d, err := ParseMonth("2025-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), d)
}
