package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-attendance-agent/internal/dto"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
	"github.com/noah-isme/sma-attendance-agent/pkg/response"
)

type attemptLister interface {
	List(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error)
}

// AttemptHandler lists journaled attendance attempts.
type AttemptHandler struct {
	journal   attemptLister
	validator *validator.Validate
	location  *time.Location
}

// NewAttemptHandler constructs an AttemptHandler.
func NewAttemptHandler(journal attemptLister, validate *validator.Validate, loc *time.Location) *AttemptHandler {
	if validate == nil {
		validate = validator.New()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttemptHandler{journal: journal, validator: validate, location: loc}
}

// List godoc
// @Summary Recent attendance attempts
// @Description Attempts recorded by this agent, newest first
// @Tags Attempts
// @Produce json
// @Param lectureId query string false "Filter by lecture"
// @Param outcome query string false "succeeded or failed"
// @Param since query string false "Only attempts started on or after this date (YYYY-MM-DD)"
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {object} response.Envelope{data=[]models.Attempt}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /attempts [get]
func (h *AttemptHandler) List(c *gin.Context) {
	var query dto.AttemptListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	filter := models.AttemptFilter{LectureID: query.LectureID, Limit: query.Limit}
	if query.Outcome != "" {
		outcome := models.AttemptOutcome(query.Outcome)
		filter.Outcome = &outcome
	}
	if query.Since != "" {
		since, err := time.ParseInLocation("2006-01-02", query.Since, h.location)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "since must be YYYY-MM-DD"))
			return
		}
		filter.Since = &since
	}

	attempts, err := h.journal.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, attempts, map[string]interface{}{"total": len(attempts)})
}
