package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-attendance-agent/internal/dto"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
	"github.com/noah-isme/sma-attendance-agent/pkg/response"
)

type historyExporter interface {
	ExportHistory(ctx context.Context, format models.ExportFormat) (*models.ExportResult, error)
	Open(token string) (*os.File, string, error)
}

// ExportHandler renders history exports and serves signed downloads.
type ExportHandler struct {
	exports   historyExporter
	validator *validator.Validate
	prefix    string
}

// NewExportHandler constructs an ExportHandler. prefix is the API prefix used
// to build download URLs.
func NewExportHandler(exports historyExporter, validate *validator.Validate, prefix string) *ExportHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ExportHandler{exports: exports, validator: validate, prefix: strings.TrimRight(prefix, "/")}
}

// Create godoc
// @Summary Export attendance history
// @Description Renders the attendance history as CSV or PDF and returns a signed download link
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportHistoryRequest true "Export format"
// @Success 201 {object} response.Envelope{data=dto.ExportHistoryResponse}
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /history/export [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.ExportHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	req.Format = models.ExportFormat(strings.ToLower(string(req.Format)))
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}

	result, err := h.exports.ExportHistory(c.Request.Context(), req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ExportHistoryResponse{
		ID:          result.ID,
		Format:      result.Format,
		Rows:        result.Rows,
		DownloadURL: fmt.Sprintf("%s/history/export/%s", h.prefix, result.Token),
		ExpiresAt:   result.ExpiresAt,
	})
}

// Download godoc
// @Summary Download an export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /history/export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType(filename), file, nil)
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
