package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-agent/internal/middleware"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	"github.com/noah-isme/sma-attendance-agent/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context) (*models.StudentSummary, bool, error)
	History(ctx context.Context) ([]models.AttendanceRecord, bool, error)
}

// DashboardHandler serves the student's attendance summary and history.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Attendance summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=models.StudentSummary}
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, hit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, summary, middleware.ExtractMeta(c))
}

// History godoc
// @Summary Attendance history
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.AttendanceRecord}
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /history [get]
func (h *DashboardHandler) History(c *gin.Context) {
	records, hit, err := h.service.History(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetMeta(c, "total", len(records))
	response.OK(c, records, middleware.ExtractMeta(c))
}
