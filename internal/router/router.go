// Package router assembles the local HTTP API.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-attendance-agent/api/swagger"
	"github.com/noah-isme/sma-attendance-agent/internal/handler"
	"github.com/noah-isme/sma-attendance-agent/internal/middleware"
	"github.com/noah-isme/sma-attendance-agent/internal/service"
	"github.com/noah-isme/sma-attendance-agent/pkg/config"
	"github.com/noah-isme/sma-attendance-agent/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-attendance-agent/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-attendance-agent/pkg/middleware/requestid"
)

// Options configures the engine.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Auth           middleware.TokenValidator
}

// Handlers groups every endpoint handler.
type Handlers struct {
	Session   *handler.SessionHandler
	Schedule  *handler.ScheduleHandler
	Dashboard *handler.DashboardHandler
	Export    *handler.ExportHandler
	Attempts  *handler.AttemptHandler
	Auth      *handler.AuthHandler
	Metrics   *handler.MetricsHandler
}

// New builds the gin engine with the agent's middleware and routes.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	logr := opts.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.POST("/auth/token", h.Auth.Token)
	// The signed token is the credential for downloads.
	api.GET("/history/export/:token", h.Export.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Auth))
	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/session", h.Session.Get)
	secured.POST("/session/start", h.Session.Start)
	secured.POST("/session/reset", h.Session.Reset)
	secured.GET("/schedule/today", h.Schedule.Today)
	secured.GET("/dashboard", h.Dashboard.Summary)
	secured.GET("/history", h.Dashboard.History)
	secured.POST("/history/export", h.Export.Create)
	secured.GET("/attempts", h.Attempts.List)
	secured.GET("/status", h.Metrics.Status)

	return r
}
