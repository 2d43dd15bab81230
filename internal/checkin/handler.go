package checkin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/internal/middleware"
	"github.com/campus-attendance/backend/pkg/response"
)

// ScanRequest is the body for POST /attendance/scan.
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// Handler handles attendance HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an attendance handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// Scan handles POST /attendance/scan. The caller must be an authenticated faculty member.
func (h *Handler) Scan(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "no QR code provided")
		return
	}

	conf, err := h.svc.SubmitScan(c.Request.Context(), userID, req.Code, h.now())
	switch {
	case err == nil:
		response.Created(c, conf)
	case errors.Is(err, ErrWindowClosed):
		response.Reject(c, http.StatusForbidden, "window_closed",
			"attendance window closed ("+h.svc.Window().String()+")", nil)
	case errors.Is(err, ErrInvalidCode):
		response.Reject(c, http.StatusBadRequest, "invalid_code", "invalid QR code", nil)
	case errors.Is(err, ErrAlreadyCheckedIn):
		response.Reject(c, http.StatusConflict, "already_checked_in", "already marked attendance today", nil)
	default:
		response.Internal(c, "failed to record attendance")
	}
}

// Status handles GET /attendance/status for the current user.
func (h *Handler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	st, err := h.svc.Status(c.Request.Context(), userID, h.now())
	if err != nil {
		h.logger.Error("load attendance status failed", zap.Error(err))
		response.Internal(c, "failed to load status")
		return
	}
	response.OK(c, st)
}

// ListByDate handles GET /admin/attendance?date=YYYY-MM-DD (defaults to today).
func (h *Handler) ListByDate(c *gin.Context) {
	date := h.svc.Window().Today(h.now())
	if s := c.Query("date"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}
	rows, err := h.svc.ListByDate(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("list attendance failed", zap.Error(err))
		response.Internal(c, "failed to list attendance")
		return
	}
	response.OK(c, gin.H{"date": calendar.FormatDate(date), "count": len(rows), "attendance": rows})
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
