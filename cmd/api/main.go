package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/shuletrack/academic-api/api/swagger"
	"github.com/shuletrack/academic-api/internal/handler"
	"github.com/shuletrack/academic-api/internal/middleware"
	"github.com/shuletrack/academic-api/internal/repository"
	"github.com/shuletrack/academic-api/internal/router"
	"github.com/shuletrack/academic-api/internal/service"
	"github.com/shuletrack/academic-api/pkg/cache"
	"github.com/shuletrack/academic-api/pkg/config"
	"github.com/shuletrack/academic-api/pkg/database"
	"github.com/shuletrack/academic-api/pkg/jobs"
	"github.com/shuletrack/academic-api/pkg/logger"
	corsmiddleware "github.com/shuletrack/academic-api/pkg/middleware/cors"
	reqidmiddleware "github.com/shuletrack/academic-api/pkg/middleware/requestid"
)

// @title ShuleTrack Academic API
// @version 1.0.0
// @description Academic lifecycle ledger for multi-tenant school management
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheEnabled := cfg.Cache.Enabled && redisClient != nil
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.AnalyticsTTL, logr, cacheEnabled)

	yearRepo := repository.NewAcademicYearRepository(db)
	termRepo := repository.NewTermRepository(db)
	streamRepo := repository.NewClassStreamRepository(db)
	progressionRepo := repository.NewProgressionRepository(db)
	enrollmentRepo := repository.NewSubjectEnrollmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "shuletrack-academic-api",
	})
	auditSvc := service.NewAuditService(userRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	}, logr, cfg.Audit.Enabled)

	calendarSvc := service.NewCalendarService(yearRepo, termRepo, validate, logr)
	streamSvc := service.NewClassStreamService(streamRepo, yearRepo, validate, logr)
	progressionSvc := service.NewProgressionService(progressionRepo, studentRepo, streamRepo, yearRepo, validate, logr)
	promotionSvc := service.NewPromotionService(progressionRepo, studentRepo, streamRepo, yearRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewSubjectEnrollmentService(enrollmentRepo, studentRepo, subjectRepo, streamRepo, yearRepo, cacheSvc, cfg.Cache.RosterTTL, cfg.Cache.ReportTTL, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	router.Register(r, router.Handlers{
		Auth:              handler.NewAuthHandler(authSvc),
		Calendar:          handler.NewCalendarHandler(calendarSvc),
		ClassStream:       handler.NewClassStreamHandler(streamSvc),
		Progression:       handler.NewProgressionHandler(progressionSvc),
		Promotion:         handler.NewPromotionHandler(promotionSvc),
		SubjectEnrollment: handler.NewSubjectEnrollmentHandler(enrollmentSvc),
		Student:           handler.NewStudentHandler(studentSvc),
		Subject:           handler.NewSubjectHandler(subjectSvc),
		Metrics:           handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)...),
	}, authSvc, auditSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{
		{Name: "postgres", Check: db.PingContext},
	}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return checks
}
