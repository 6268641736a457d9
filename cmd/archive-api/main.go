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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/forum-archive-api/internal/handler"
	"github.com/noah-isme/forum-archive-api/internal/models"
	"github.com/noah-isme/forum-archive-api/internal/platform"
	"github.com/noah-isme/forum-archive-api/internal/repository"
	"github.com/noah-isme/forum-archive-api/internal/router"
	"github.com/noah-isme/forum-archive-api/internal/service"
	"github.com/noah-isme/forum-archive-api/pkg/cache"
	"github.com/noah-isme/forum-archive-api/pkg/config"
	"github.com/noah-isme/forum-archive-api/pkg/database"
	"github.com/noah-isme/forum-archive-api/pkg/jobs"
	"github.com/noah-isme/forum-archive-api/pkg/logger"
)

// @title Forum Archive API
// @version 0.1.0
// @description Archives EA Forum and LessWrong accounts into downloadable exports
// @BasePath /
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to apply schema", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, user id cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	jobRepo := repository.NewArchiveJobRepository(db)
	itemRepo := repository.NewArchivedItemRepository(db)
	userCache := repository.NewUserCacheRepository(redisClient, cfg.Archive.UserCacheTTL)

	httpClient := &http.Client{Timeout: cfg.Archive.UpstreamTimeout}
	fetchers := make(map[models.Platform]service.ContentFetcher)
	for _, p := range platform.Supported(cfg.Platforms) {
		fetchers[p.Name] = platform.NewFetcher(p, httpClient,
			platform.WithUserIDCache(userCache),
			platform.WithObserver(metrics),
			platform.WithLogger(logr))
	}

	worker := service.NewArchiveWorker(jobRepo, itemRepo, fetchers, metrics, logr.Named("archive-worker"))
	queue := jobs.NewQueue("archive", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Archive.WorkerConcurrency,
		BufferSize: cfg.Archive.QueueBuffer,
		Logger:     logr,
	})

	archiveSvc := service.NewArchiveService(jobRepo, itemRepo, queue, validator.New(), service.ArchiveServiceConfig{
		RecoveryBatch:    cfg.Archive.RecoveryBatch,
		RecoveryInterval: cfg.Archive.RecoveryInterval,
	}, logr)
	exportSvc := service.NewExportService(jobRepo, itemRepo, nil, nil, logr)

	// Jobs still running belong to a process that is gone.
	archiveSvc.FailInterruptedJobs(ctx)

	// Workers outlive the signal context so in-flight jobs can drain.
	queue.Start(context.Background())
	if cfg.Archive.RecoverPending {
		archiveSvc.RecoverPendingJobs(ctx)
		archiveSvc.StartRecoverySweep(ctx)
	}

	r := router.New(router.Deps{
		Config:   cfg,
		Logger:   logr,
		Auth:     service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		Archives: handler.NewArchiveHandler(archiveSvc, exportSvc),
		Metrics:  metrics,
		DB:       db,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown error", zap.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Archive.DrainTimeout)
	defer cancelDrain()
	if err := queue.Shutdown(drainCtx); err != nil {
		logr.Warn("archive queue did not drain in time", zap.Error(err))
	}
}
