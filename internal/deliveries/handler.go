package deliveries

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/internal/middleware"
	"github.com/campus-attendance/backend/internal/models"
	"github.com/campus-attendance/backend/pkg/queue"
	"github.com/campus-attendance/backend/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store reads delivery records.
type Store interface {
	List(ctx context.Context, limit int) ([]models.DeliveryRecord, error)
	LatestArchived(ctx context.Context, date time.Time) (*models.DeliveryRecord, error)
}

// Enqueuer schedules a report job.
type Enqueuer interface {
	EnqueueReport(ctx context.Context, payload queue.ReportPayload) (string, error)
}

// URLSigner signs archive download URLs.
type URLSigner interface {
	ReportDownloadURL(ctx context.Context, key string) (string, error)
}

// SendRequest is the body for POST /admin/reports/send. Date defaults to today.
type SendRequest struct {
	Date string `json:"date"`
}

// Handler handles report delivery endpoints.
type Handler struct {
	store  Store
	jobs   Enqueuer
	signer URLSigner
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a deliveries handler. signer may be nil when archiving is disabled.
func NewHandler(store Store, jobs Enqueuer, signer URLSigner, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jobs: jobs, signer: signer, loc: loc, logger: logger, now: time.Now}
}

// List handles GET /admin/deliveries?limit=.
func (h *Handler) List(c *gin.Context) {
	limit := defaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list deliveries failed", zap.Error(err))
		response.Internal(c, "failed to load delivery records")
		return
	}
	response.OK(c, list)
}

// Send handles POST /admin/reports/send: queues a report for the worker.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	date := calendar.DateIn(h.now(), h.loc)
	if req.Date != "" {
		d, err := calendar.ParseDate(req.Date)
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}
	requestedBy, _ := c.Get(middleware.ContextUsername)
	by, _ := requestedBy.(string)

	jobID, err := h.jobs.EnqueueReport(c.Request.Context(), queue.ReportPayload{Date: calendar.FormatDate(date), RequestedBy: by})
	if err != nil {
		h.logger.Error("enqueue report failed", zap.Error(err))
		response.ServiceUnavailable(c, "report queue unavailable")
		return
	}
	h.logger.Info("report queued", zap.String("job_id", jobID), zap.String("date", calendar.FormatDate(date)), zap.String("requested_by", by))
	response.Accepted(c, gin.H{"job_id": jobID, "date": calendar.FormatDate(date)})
}

// ArchiveURL handles GET /admin/reports/:date/archive-url.
func (h *Handler) ArchiveURL(c *gin.Context) {
	if h.signer == nil {
		response.ServiceUnavailable(c, "report archiving is not configured")
		return
	}
	date, err := calendar.ParseDate(c.Param("date"))
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	rec, err := h.store.LatestArchived(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("load archived delivery failed", zap.Error(err))
		response.Internal(c, "failed to load delivery record")
		return
	}
	if rec == nil {
		response.NotFound(c, "no archived report for this date")
		return
	}
	url, err := h.signer.ReportDownloadURL(c.Request.Context(), rec.ArchiveKey)
	if err != nil {
		h.logger.Error("presign archive failed", zap.Error(err))
		response.Internal(c, "failed to sign download url")
		return
	}
	response.OK(c, gin.H{"url": url, "key": rec.ArchiveKey})
}
