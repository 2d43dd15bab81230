package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/internal/models"
	"github.com/campus-attendance/backend/pkg/response"
)

// RecentLimit is the number of scans shown on the dashboard.
const RecentLimit = 10

// FacultyCounter counts accounts by role.
type FacultyCounter interface {
	CountByRole(ctx context.Context, role models.Role) (int, error)
}

// AttendanceLister lists the check-ins of a civil date.
type AttendanceLister interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.CheckInRow, error)
}

// RecentScan is one row of the dashboard's recent activity list.
type RecentScan struct {
	Username       string    `json:"username"`
	FullName       string    `json:"full_name"`
	Department     string    `json:"department"`
	ScannedAt      time.Time `json:"scanned_at"`
	ScannedAtLocal string    `json:"scanned_at_local"`
}

// DashboardResponse is the JSON shape of GET /admin/dashboard.
type DashboardResponse struct {
	Date           string       `json:"date"`
	TotalFaculty   int          `json:"total_faculty"`
	PresentToday   int          `json:"present_today"`
	AbsentToday    int          `json:"absent_today"`
	AttendanceRate float64      `json:"attendance_rate"`
	WindowOpen     bool         `json:"window_open"`
	Window         string       `json:"window"`
	RecentCheckIns []RecentScan `json:"recent_check_ins"`
}

// Handler handles GET /admin/dashboard.
type Handler struct {
	users      FacultyCounter
	attendance AttendanceLister
	window     calendar.Window
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates an analytics handler.
func NewHandler(users FacultyCounter, attendance AttendanceLister, window calendar.Window, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, attendance: attendance, window: window, logger: logger, now: time.Now}
}

// Dashboard handles GET /admin/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()
	today := h.window.Today(now)

	total, err := h.users.CountByRole(ctx, models.RoleFaculty)
	if err != nil {
		h.logger.Error("count faculty failed", zap.Error(err))
		response.Internal(c, "failed to load faculty count")
		return
	}
	rows, err := h.attendance.ListByDate(ctx, today)
	if err != nil {
		h.logger.Error("list attendance failed", zap.Error(err))
		response.Internal(c, "failed to load attendance")
		return
	}
	response.OK(c, h.summarize(today, now, total, rows))
}

func (h *Handler) summarize(today, now time.Time, total int, rows []models.CheckInRow) DashboardResponse {
	present := len(rows)
	absent := total - present
	if absent < 0 {
		absent = 0
	}
	var rate float64
	if total > 0 {
		rate = float64(present) / float64(total) * 100
	}

	sorted := append([]models.CheckInRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ScannedAt.After(sorted[j].ScannedAt) })
	if len(sorted) > RecentLimit {
		sorted = sorted[:RecentLimit]
	}
	recent := make([]RecentScan, 0, len(sorted))
	for _, r := range sorted {
		recent = append(recent, RecentScan{
			Username:       r.Username,
			FullName:       r.FullName,
			Department:     r.Department,
			ScannedAt:      r.ScannedAt,
			ScannedAtLocal: r.ScannedAt.In(h.window.Location).Format("03:04 PM MST"),
		})
	}

	return DashboardResponse{
		Date:           calendar.FormatDate(today),
		TotalFaculty:   total,
		PresentToday:   present,
		AbsentToday:    absent,
		AttendanceRate: rate,
		WindowOpen:     h.window.IsOpen(now),
		Window:         h.window.String(),
		RecentCheckIns: recent,
	}
}
