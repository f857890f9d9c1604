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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sigpae-api/api/swagger"
	"github.com/noah-isme/sigpae-api/internal/handler"
	"github.com/noah-isme/sigpae-api/internal/repository"
	"github.com/noah-isme/sigpae-api/internal/service"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	"github.com/noah-isme/sigpae-api/pkg/cache"
	"github.com/noah-isme/sigpae-api/pkg/config"
	"github.com/noah-isme/sigpae-api/pkg/database"
	"github.com/noah-isme/sigpae-api/pkg/export"
	"github.com/noah-isme/sigpae-api/pkg/jobs"
	"github.com/noah-isme/sigpae-api/pkg/logger"
)

// @title SIGPAE API
// @version 1.0.0
// @description Approval workflows and audit trail for school meal requests
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database, 10*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis, 5*time.Second)
		if err != nil {
			logr.Warn("redis unavailable, request cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	registry, err := workflow.DefaultRegistry(workflow.VariantParams{
		AdvanceNoticeDays:           cfg.Workflow.AdvanceNoticeDays,
		ContinuousAdvanceNoticeDays: cfg.Workflow.ContinuousAdvanceNoticeDays,
		CancellationNoticeDays:      cfg.Workflow.CancellationNoticeDays,
		LastMinuteDays:              cfg.Workflow.LastMinuteDays,
		AlterationNoticeDays:        cfg.Workflow.AlterationNoticeDays,
		AllowDecemberRollover:       cfg.Workflow.AllowDecemberRollover,
	})
	if err != nil {
		return fmt.Errorf("build workflow registry: %w", err)
	}
	bands, err := workflow.NewBands(
		workflow.Band{Priority: workflow.PriorityUrgent, MaxDays: cfg.Workflow.UrgentDays},
		workflow.Band{Priority: workflow.PriorityNearLimit, MaxDays: cfg.Workflow.NearLimitDays},
	)
	if err != nil {
		return fmt.Errorf("priority bands: %w", err)
	}
	loc := cfg.Workflow.Location()

	requestRepo := repository.NewRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)

	executor := workflow.NewExecutor(registry, repository.NewWorkflowStore(db),
		workflow.WithClock(func() time.Time { return time.Now().In(loc) }),
		workflow.WithLocation(loc),
		workflow.WithCalendarSource(calendarRepo),
		workflow.WithIDGenerator(uuid.NewString),
		workflow.WithExecutorLogger(logr.Named("workflow")),
	)

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	opts := []service.RequestServiceOption{
		service.WithRequestCache(cacheSvc),
		service.WithRequestMetrics(metricsSvc),
		service.WithPriorityBands(bands),
	}
	var notifications *service.NotificationService
	if cfg.Notifications.Enabled {
		notifications = service.NewNotificationService(service.NewLogNotifier(logr.Named("notify")), registry, metricsSvc, logr, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr.Named("jobs"),
		})
		notifications.Start(ctx)
		defer notifications.Stop()
		opts = append(opts, service.WithTransitionPublisher(notifications))
	}

	requestSvc := service.NewRequestService(executor, requestRepo, institutionRepo, auditRepo, validator.New(), logr, opts...)
	reportSvc := service.NewReportService(requestSvc, registry, export.NewCSVExporter(), export.NewXLSXExporter(), export.NewPDFExporter(), service.ReportConfig{
		MaxRows: cfg.Reports.MaxRows,
		Title:   cfg.Reports.Title,
	}, logr)
	sweepSvc := service.NewSweepService(requestRepo, requestSvc, registry, executor.Today, service.SweepConfig{
		Enabled:  cfg.Sweeper.Enabled,
		Schedule: cfg.Sweeper.Schedule,
		Timeout:  cfg.Sweeper.Timeout,
		Location: loc,
	}, metricsSvc, logr.Named("sweep"))
	if err := sweepSvc.Start(ctx); err != nil {
		return fmt.Errorf("start sweeps: %w", err)
	}
	defer sweepSvc.Stop()

	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
	})

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, routeDeps{
		tokens:    tokenSvc,
		metrics:   metricsSvc,
		requests:  handler.NewRequestHandler(requestSvc, reportSvc),
		workflows: handler.NewWorkflowHandler(requestSvc, sweepSvc),
		calendar:  handler.NewCalendarHandler(service.NewCalendarService(calendarRepo, logr)),
		probes:    handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Strings("variants", registry.Variants()))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
