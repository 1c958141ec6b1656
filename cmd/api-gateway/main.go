package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/sia-krs-api/api/swagger"
	"github.com/noah-isme/sia-krs-api/internal/handler"
	"github.com/noah-isme/sia-krs-api/internal/repository"
	"github.com/noah-isme/sia-krs-api/internal/service"
	"github.com/noah-isme/sia-krs-api/pkg/cache"
	"github.com/noah-isme/sia-krs-api/pkg/config"
	"github.com/noah-isme/sia-krs-api/pkg/database"
	"github.com/noah-isme/sia-krs-api/pkg/jobs"
	"github.com/noah-isme/sia-krs-api/pkg/logger"
)

// @title SIA KRS API
// @version 1.0.0
// @description Course enrollment (KRS) workflow for students and academic administrators
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.KRS.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	termRepo := repository.NewTermRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	recordRepo := repository.NewEnrollmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	mux := jobs.NewMux()
	service.RegisterEventSubscribers(mux, auditRepo, metrics, logr)
	queue := jobs.NewQueue("krs-events", mux.Dispatch, jobs.QueueConfig{
		Workers:    cfg.KRS.EventWorkers,
		BufferSize: cfg.KRS.EventBuffer,
		MaxRetries: 2,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()
	events := service.NewEventPublisher(queue, metrics, logr)

	retryPolicy := service.ReadRetryPolicy{Attempts: cfg.KRS.ReadRetries, Delay: cfg.KRS.ReadRetryDelay}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.KRS.CacheTTL, logr, redisClient != nil)
	catalogSvc := service.NewCatalogService(courseRepo, termRepo, studentRepo, recordRepo, cacheSvc, retryPolicy, metrics, logr)
	krsSvc := service.NewKRSService(recordRepo, termRepo, studentRepo, courseRepo, events, cfg.KRS.CreditCeiling, validate, logr)
	batchSvc := service.NewBatchService(catalogSvc, studentRepo, courseRepo, recordRepo, events, service.BatchOptions{
		ChunkSize:     cfg.KRS.BatchChunkSize,
		CreditCeiling: cfg.KRS.CreditCeiling,
		RetryPolicy:   retryPolicy,
	}, metrics, validate, logr)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	r := newRouter(cfg, logr, routeDeps{
		verifier: service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		metrics:  metrics,
		krs:      handler.NewKRSHandler(krsSvc, catalogSvc),
		admin:    handler.NewKRSAdminHandler(krsSvc, batchSvc, catalogSvc),
		ops:      handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logr.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
