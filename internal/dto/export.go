package dto

import (
	"time"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

// ExportHistoryRequest captures POST /history/export.
type ExportHistoryRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportHistoryResponse points at a downloadable export.
type ExportHistoryResponse struct {
	ID          string              `json:"id"`
	Format      models.ExportFormat `json:"format"`
	Rows        int                 `json:"rows"`
	DownloadURL string              `json:"downloadUrl"`
	ExpiresAt   time.Time           `json:"expiresAt"`
}

// AttemptListQuery binds GET /attempts query parameters.
type AttemptListQuery struct {
	LectureID string `form:"lectureId"`
	Outcome   string `form:"outcome" validate:"omitempty,oneof=succeeded failed"`
	Since     string `form:"since" validate:"omitempty,datetime=2006-01-02"`
	Limit     int    `form:"limit" validate:"omitempty,min=1,max=500"`
}
