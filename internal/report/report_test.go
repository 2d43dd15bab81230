package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/campus-attendance/backend/internal/models"
	"github.com/campus-attendance/backend/internal/notify"
)

var reportDate = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func faculty() []models.User {
	return []models.User{
		{ID: uuid.New(), Username: "arjun", FullName: "Arjun Rao", Department: "Physics", Role: models.RoleFaculty},
		{ID: uuid.New(), Username: "meera", FullName: "Meera Iyer", Department: "Chemistry", Role: models.RoleFaculty},
		{ID: uuid.New(), Username: "kiran", Role: models.RoleFaculty},
	}
}

func rowsFor(users ...models.User) []models.CheckInRow {
	var rows []models.CheckInRow
	for i, u := range users {
		rows = append(rows, models.CheckInRow{
			CheckIn: models.CheckIn{
				ID: uuid.New(), UserID: u.ID, Date: reportDate,
				ScannedAt: time.Date(2024, 3, 4, 4, 5+i, 0, 0, time.UTC),
				Status:    models.CheckInStatusPresent,
			},
			Username: u.Username,
		})
	}
	return rows
}

func TestPartition(t *testing.T) {
	fac := faculty()
	stranger := models.User{ID: uuid.New(), Username: "admin"}
	s := Partition(reportDate, ist(t), fac, rowsFor(fac[1], stranger))

	require.Len(t, s.Present, 1)
	assert.Equal(t, "meera", s.Present[0].User.Username)
	require.Len(t, s.Absent, 2)
	assert.Equal(t, "arjun", s.Absent[0].Username)
	assert.Equal(t, "kiran", s.Absent[1].Username)
	assert.Equal(t, 3, s.Total())
	assert.Equal(t, "33.3%", s.RateString())
	assert.Equal(t, "09:35 AM IST", s.ScanTime(s.Present[0].ScannedAt))
	assert.Equal(t, "Daily Attendance Report - March 04, 2024", s.Subject())
}

func TestPartition_Empty(t *testing.T) {
	s := Partition(reportDate, ist(t), nil, nil)
	assert.Zero(t, s.Total())
	assert.Equal(t, "0.0%", s.RateString())
	assert.NotNil(t, s.Present)
	assert.NotNil(t, s.Absent)
}

func TestBuild(t *testing.T) {
	fac := faculty()
	s := Partition(reportDate, ist(t), fac, rowsFor(fac[0], fac[1]))

	b, err := NewDocumentBuilder().Build(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, s.Subject(), b.Subject)
	require.Len(t, b.Attachments, 2)
	assert.Equal(t, "attendance_report_20240304.xlsx", b.Attachments[0].Filename)
	assert.Equal(t, "attendance_report_20240304.pdf", b.Attachments[1].Filename)
	assert.True(t, bytes.HasPrefix(b.Attachments[1].Data, []byte("%PDF")))

	wb, err := excelize.OpenReader(bytes.NewReader(b.Attachments[0].Data))
	require.NoError(t, err)
	defer wb.Close()
	title, err := wb.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, s.Subject(), title)
	name, _ := wb.GetCellValue(sheetName, "B4")
	status, _ := wb.GetCellValue(sheetName, "E4")
	scan, _ := wb.GetCellValue(sheetName, "F4")
	assert.Equal(t, "Arjun Rao", name)
	assert.Equal(t, "Present", status)
	assert.Equal(t, "09:35 AM IST", scan)
	absentName, _ := wb.GetCellValue(sheetName, "B6")
	absentDept, _ := wb.GetCellValue(sheetName, "D6")
	assert.Equal(t, "kiran", absentName)
	assert.Equal(t, "N/A", absentDept)
	rate, _ := wb.GetCellValue(sheetName, "A13")
	assert.Equal(t, "Attendance Rate: 66.7%", rate)
}

func TestBuildBody(t *testing.T) {
	fac := faculty()
	fac[0].FullName = "Arjun *Star* <b>Rao</b>"
	s := Partition(reportDate, ist(t), fac, rowsFor(fac[0]))

	html, err := BuildBody(s)
	require.NoError(t, err)
	assert.Contains(t, html, "<h2>Daily Attendance Report</h2>")
	assert.Contains(t, html, "Present Faculty (1)")
	assert.Contains(t, html, "Absent Faculty (2)")
	assert.Contains(t, html, "Scanned at: 09:35 AM IST")
	assert.Contains(t, html, "*Star*")
	assert.NotContains(t, html, "<b>Rao</b>")
	assert.Contains(t, html, "33.3%")
	assert.Contains(t, html, "<table>")
}

func TestArchive(t *testing.T) {
	b := &Bundle{Attachments: []notify.Attachment{
		{Filename: "a.xlsx", Data: []byte("spreadsheet")},
		{Filename: "a.pdf", Data: []byte("document")},
	}}
	data, err := Archive(b, reportDate)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "document", string(got))
}

type fakeUsers struct {
	users []models.User
	err   error
}

func (f *fakeUsers) ListByRole(_ context.Context, role models.Role) ([]models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeCheckIns struct {
	rows []models.CheckInRow
	err  error
	date time.Time
}

func (f *fakeCheckIns) ListByDate(_ context.Context, date time.Time) ([]models.CheckInRow, error) {
	f.date = date
	return f.rows, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLog struct {
	records []models.DeliveryRecord
}

func (f *fakeLog) Create(_ context.Context, rec *models.DeliveryRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

type fakeArchive struct {
	err  error
	data []byte
}

func (f *fakeArchive) PutReportArchive(_ context.Context, date time.Time, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.data = data
	return "reports/" + date.Format("2006-01-02") + ".zip", nil
}

type triggerFixture struct {
	users    *fakeUsers
	checkIns *fakeCheckIns
	notifier *fakeNotifier
	log      *fakeLog
	archive  *fakeArchive
	trigger  *Trigger
}

func newTriggerFixture(t *testing.T, recipients []string) *triggerFixture {
	fac := faculty()
	f := &triggerFixture{
		users:    &fakeUsers{users: append(fac, models.User{ID: uuid.New(), Username: "admin", Role: models.RoleAdmin})},
		checkIns: &fakeCheckIns{rows: rowsFor(fac[2])},
		notifier: &fakeNotifier{},
		log:      &fakeLog{},
		archive:  &fakeArchive{},
	}
	f.trigger = NewTrigger(TriggerDeps{
		Participants: f.users,
		CheckIns:     f.checkIns,
		Builder:      NewDocumentBuilder(),
		Notifier:     f.notifier,
		Deliveries:   f.log,
		Archive:      f.archive,
	}, recipients, ist(t), nil)
	return f
}

func TestRunDailyReport_Success(t *testing.T) {
	f := newTriggerFixture(t, []string{"dean@campus.edu"})

	ok := f.trigger.RunDailyReport(context.Background(), reportDate)
	require.True(t, ok)

	assert.Equal(t, reportDate, f.checkIns.date)
	require.Len(t, f.notifier.sent, 1)
	msg := f.notifier.sent[0]
	assert.Equal(t, []string{"dean@campus.edu"}, msg.To)
	assert.Equal(t, "Daily Attendance Report - March 04, 2024", msg.Subject)
	assert.Len(t, msg.Attachments, 2)
	assert.Contains(t, msg.HTMLBody, "Present Faculty (1)")
	assert.Contains(t, msg.HTMLBody, "Absent Faculty (2)")
	assert.NotContains(t, msg.HTMLBody, "admin")

	require.Len(t, f.log.records, 1)
	rec := f.log.records[0]
	assert.Equal(t, models.DeliveryStatusSent, rec.Status)
	assert.Equal(t, "reports/2024-03-04.zip", rec.ArchiveKey)
	assert.Empty(t, rec.ErrorMessage)
	assert.NotEmpty(t, f.archive.data)
}

func TestRunDailyReport_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *triggerFixture)
		wantSend bool
	}{
		{"notifier fails", func(f *triggerFixture) { f.notifier.err = errors.New("smtp down") }, false},
		{"participants fail", func(f *triggerFixture) { f.users.err = errors.New("db down") }, false},
		{"check-ins fail", func(f *triggerFixture) { f.checkIns.err = errors.New("db down") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTriggerFixture(t, []string{"dean@campus.edu"})
			tt.mutate(f)

			assert.False(t, f.trigger.RunDailyReport(context.Background(), reportDate))
			assert.Empty(t, f.notifier.sent)
			require.Len(t, f.log.records, 1)
			assert.Equal(t, models.DeliveryStatusFailed, f.log.records[0].Status)
			assert.NotEmpty(t, f.log.records[0].ErrorMessage)
		})
	}
}

func TestRunDailyReport_NoRecipients(t *testing.T) {
	f := newTriggerFixture(t, nil)

	assert.False(t, f.trigger.RunDailyReport(context.Background(), reportDate))
	require.Len(t, f.log.records, 1)
	assert.Equal(t, models.DeliveryStatusFailed, f.log.records[0].Status)
}

func TestRunDailyReport_ArchiveFailureStillSends(t *testing.T) {
	f := newTriggerFixture(t, []string{"dean@campus.edu"})
	f.archive.err = errors.New("s3 unavailable")

	assert.True(t, f.trigger.RunDailyReport(context.Background(), reportDate))
	require.Len(t, f.log.records, 1)
	assert.Equal(t, models.DeliveryStatusSent, f.log.records[0].Status)
	assert.Empty(t, f.log.records[0].ArchiveKey)
}
