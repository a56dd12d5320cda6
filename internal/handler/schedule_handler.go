package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-agent/internal/dto"
	"github.com/noah-isme/sma-attendance-agent/internal/middleware"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	"github.com/noah-isme/sma-attendance-agent/internal/service"
	"github.com/noah-isme/sma-attendance-agent/pkg/response"
)

type timetableSource interface {
	Cached(ctx context.Context) (models.Timetable, bool, error)
}

// ScheduleHandler serves today's lectures.
type ScheduleHandler struct {
	timetables timetableSource
	location   *time.Location
	now        func() time.Time
}

// NewScheduleHandler constructs a ScheduleHandler evaluating days in loc.
func NewScheduleHandler(timetables timetableSource, loc *time.Location) *ScheduleHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleHandler{timetables: timetables, location: loc, now: time.Now}
}

// Today godoc
// @Summary Today's schedule
// @Description Lists today's lectures in start order, excluding breaks, labelled finished, active or upcoming
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.ScheduleResponse}
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/today [get]
func (h *ScheduleHandler) Today(c *gin.Context) {
	tt, hit, err := h.timetables.Cached(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	now := h.now().In(h.location)
	entries := service.TodaysSchedule(tt, now)
	if entries == nil {
		entries = []models.ScheduleEntry{}
	}

	middleware.SetCacheHit(c, hit)
	response.OK(c, dto.ScheduleResponse{
		Day:     now.Weekday().String(),
		Date:    now.Format("2006-01-02"),
		Entries: entries,
	}, middleware.ExtractMeta(c))
}
