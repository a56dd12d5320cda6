package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/dto"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	"github.com/noah-isme/sma-attendance-agent/internal/service"
	"github.com/noah-isme/sma-attendance-agent/pkg/response"
)

type sessionService interface {
	Snapshot() models.SessionSnapshot
	Start(ctx context.Context) (models.SessionSnapshot, error)
	Reset(ctx context.Context) (models.SessionSnapshot, error)
}

// SessionHandler exposes the attendance session controller.
type SessionHandler struct {
	session sessionService
	logger  *zap.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(session sessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{session: session, logger: logger}
}

// Get godoc
// @Summary Current session view
// @Description Returns the attendance card view model and the raw session snapshot
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.SessionResponse}
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /session [get]
func (h *SessionHandler) Get(c *gin.Context) {
	response.OK(c, sessionResponse(h.session.Snapshot()))
}

// Start godoc
// @Summary Start an attendance check
// @Description Runs location scan, face verification and submission. Failures return the error together with the view to render.
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.SessionResponse}
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /session/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	fields := []zap.Field{zap.String("client_ip", c.ClientIP())}
	if claims := claimsFromContext(c); claims != nil {
		fields = append(fields, zap.String("token_id", claims.ID))
	}
	h.logger.Info("attendance check requested", fields...)

	snap, err := h.session.Start(c.Request.Context())
	if err != nil {
		response.ErrorWithData(c, err, sessionResponse(snap))
		return
	}
	response.JSON(c, http.StatusOK, sessionResponse(snap))
}

// Reset godoc
// @Summary Mark another
// @Description Returns the session to its initial state and re-evaluates the active lecture
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope{data=dto.SessionResponse}
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /session/reset [post]
func (h *SessionHandler) Reset(c *gin.Context) {
	snap, err := h.session.Reset(c.Request.Context())
	if err != nil {
		response.ErrorWithData(c, err, sessionResponse(snap))
		return
	}
	response.OK(c, sessionResponse(snap))
}

func sessionResponse(snap models.SessionSnapshot) dto.SessionResponse {
	return dto.SessionResponse{View: service.RenderView(snap), Snapshot: snap}
}
