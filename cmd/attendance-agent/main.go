package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/camera"
	"github.com/noah-isme/sma-attendance-agent/internal/client"
	"github.com/noah-isme/sma-attendance-agent/internal/handler"
	"github.com/noah-isme/sma-attendance-agent/internal/repository"
	"github.com/noah-isme/sma-attendance-agent/internal/router"
	"github.com/noah-isme/sma-attendance-agent/internal/scan"
	"github.com/noah-isme/sma-attendance-agent/internal/service"
	"github.com/noah-isme/sma-attendance-agent/pkg/cache"
	"github.com/noah-isme/sma-attendance-agent/pkg/config"
	"github.com/noah-isme/sma-attendance-agent/pkg/database"
	"github.com/noah-isme/sma-attendance-agent/pkg/logger"
	"github.com/noah-isme/sma-attendance-agent/pkg/storage"
)

// @title SMA Attendance Agent
// @version 1.0.0
// @description Local API of the student attendance agent
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	shutdownTimeout = 30 * time.Second
	exportRetention = 24 * time.Hour
	cleanupInterval = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("agent stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()
	validate := validator.New()
	loc := cfg.Session.Location()
	checks := map[string]handler.ReadinessCheck{}

	backend, err := client.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logr)
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}
	if cfg.Backend.Email != "" {
		if err := backend.Login(ctx, cfg.Backend.Email, cfg.Backend.Password); err != nil {
			logr.Warn("backend login failed; requests will be unauthorized until restart", zap.Error(err))
		}
	}

	// Per-step contexts set tighter bounds; the client timeout catches a stalled bridge.
	bridge := &http.Client{Timeout: cfg.Scan.HostScanTimeout + cfg.Session.CameraTimeout}
	provider := scan.Select(ctx, cfg.Scan, bridge, logr)
	device := camera.NewHTTPDevice(cfg.Scan.HostBridgeURL, bridge, logr)

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer rdb.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(rdb)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TimetableTTL, logr, cacheRepo != nil)

	journalCfg := service.JournalConfig{Workers: cfg.Journal.Workers, Retries: cfg.Journal.Retries}
	journal := service.NewJournalService(nil, journalCfg, metrics, logr)
	if cfg.Journal.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("journal database: %w", err)
		}
		defer db.Close() //nolint:errcheck
		if err := database.EnsureJournalSchema(ctx, db); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
		journal = service.NewJournalService(repository.NewAttemptRepository(db), journalCfg, metrics, logr)
		checks["postgres"] = db.PingContext
	}
	journal.Start(ctx)
	defer journal.Stop()

	timetables := service.NewTimetableService(backend, cacheSvc, cfg.Cache.TimetableTTL, metrics, logr)
	dashboard := service.NewDashboardService(backend, cacheSvc, service.DashboardServiceConfig{SummaryTTL: cfg.Cache.SummaryTTL}, logr)

	controller := service.NewSessionController(service.SessionControllerParams{
		Timetables: timetables,
		Backend:    backend,
		Scanner:    provider,
		Camera:     device,
		Journal:    journal,
		Summary:    dashboard,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logr,
		Config: service.SessionControllerConfig{
			StabilizationDelay: cfg.Session.StabilizationDelay,
			CameraTimeout:      cfg.Session.CameraTimeout,
			SubmitTimeout:      cfg.Session.SubmitTimeout,
			Location:           loc,
		},
	})
	if _, err := controller.Refresh(ctx); err != nil {
		logr.Warn("initial timetable load failed", zap.Error(err))
	}
	go service.NewRefresher(controller, cfg.Session.RefreshInterval, logr).Run(ctx)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewDownloadSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(dashboard, store, signer, service.ExportConfig{Retention: exportRetention, Location: loc}, logr, nil, nil)
	go runCleanup(ctx, exports)

	auth := service.NewAuthService(validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiry:     cfg.JWT.Expiration,
		Issuer:     cfg.JWT.TokenIssuer,
		APIKeyHash: cfg.JWT.APIKeyHash,
	})
	if !auth.Enabled() {
		logr.Warn("LOCAL_API_KEY_HASH not set; local API is unauthenticated and bound to loopback only")
	}

	engine := router.New(router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logr,
		Metrics:        metrics,
		Auth:           auth,
	}, router.Handlers{
		Session:   handler.NewSessionHandler(controller, logr),
		Schedule:  handler.NewScheduleHandler(timetables, loc),
		Dashboard: handler.NewDashboardHandler(dashboard),
		Export:    handler.NewExportHandler(exports, validate, cfg.APIPrefix),
		Attempts:  handler.NewAttemptHandler(journal, validate, loc),
		Auth:      handler.NewAuthHandler(auth),
		Metrics:   handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("agent listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("scan_provider", provider.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCleanup(ctx context.Context, exports *service.ExportService) {
	exports.Cleanup()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exports.Cleanup()
		}
	}
}
