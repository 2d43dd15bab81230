package codes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-attendance/backend/internal/calendar"
	"github.com/campus-attendance/backend/pkg/response"
)

// GenerateRequest is the body for POST /admin/tokens/generate.
type GenerateRequest struct {
	Month string `json:"month"` // YYYY-MM; empty means the current month
}

// Handler handles admin admission token endpoints.
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a token admin handler.
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// Generate handles POST /admin/tokens/generate. Fills the month with tokens.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	ref := h.registry.now()
	if req.Month != "" {
		m, err := calendar.ParseMonth(req.Month)
		if err != nil {
			response.BadRequest(c, "month must be YYYY-MM")
			return
		}
		// Noon keeps the civil date stable under any zone conversion.
		ref = time.Date(m.Year(), m.Month(), 1, 12, 0, 0, 0, h.registry.loc)
	}

	created, err := h.registry.GenerateForMonth(c.Request.Context(), ref)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			failed := make([]string, len(genErr.Dates))
			for i, d := range genErr.Dates {
				failed[i] = calendar.FormatDate(d)
			}
			h.logger.Error("token generation failed", zap.Error(err))
			response.Reject(c, http.StatusInternalServerError, "generation_failed", "token generation failed", gin.H{"failed_dates": failed})
			return
		}
		response.Internal(c, "token generation failed")
		return
	}
	response.OK(c, gin.H{"generated": len(created), "tokens": created})
}

// Today handles GET /admin/tokens/today.
func (h *Handler) Today(c *gin.Context) {
	tok, err := h.registry.TodayToken(c.Request.Context())
	if err != nil {
		h.logger.Error("load today token failed", zap.Error(err))
		response.Internal(c, "failed to load token")
		return
	}
	if tok == nil {
		response.NotFound(c, "no token generated for today")
		return
	}
	response.OK(c, tok)
}

// ListMonth handles GET /admin/tokens?month=YYYY-MM.
func (h *Handler) ListMonth(c *gin.Context) {
	ref := h.registry.Today()
	if s := c.Query("month"); s != "" {
		m, err := calendar.ParseMonth(s)
		if err != nil {
			response.BadRequest(c, "month must be YYYY-MM")
			return
		}
		ref = m
	}
	list, err := h.registry.ListMonth(c.Request.Context(), ref)
	if err != nil {
		h.logger.Error("list tokens failed", zap.Error(err))
		response.Internal(c, "failed to list tokens")
		return
	}
	response.OK(c, list)
}

// DownloadQR handles GET /admin/tokens/:date/qr.png. Serves the QR image of a day's token.
func (h *Handler) DownloadQR(c *gin.Context) {
	date, err := calendar.ParseDate(c.Param("date"))
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	tok, err := h.registry.TokenForDate(c.Request.Context(), date)
	if err != nil {
		h.logger.Error("load token failed", zap.Error(err))
		response.Internal(c, "failed to load token")
		return
	}
	if tok == nil {
		response.NotFound(c, "token not found for this date")
		return
	}
	png, err := QRCodePNG(tok.Code)
	if err != nil {
		h.logger.Error("render qr failed", zap.Error(err))
		response.Internal(c, "failed to render qr code")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="qr_code_`+calendar.FormatDate(date)+`.png"`)
	c.Data(http.StatusOK, "image/png", png)
}
