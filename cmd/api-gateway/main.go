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
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/coursework-api/api/swagger"
	"github.com/noah-isme/coursework-api/internal/handler"
	"github.com/noah-isme/coursework-api/internal/repository"
	"github.com/noah-isme/coursework-api/internal/router"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/pkg/cache"
	"github.com/noah-isme/coursework-api/pkg/config"
	"github.com/noah-isme/coursework-api/pkg/database"
	"github.com/noah-isme/coursework-api/pkg/logger"
	"github.com/noah-isme/coursework-api/pkg/storage"
	"github.com/noah-isme/coursework-api/pkg/validation"
)

// @title Coursework API
// @version 1.0.0
// @description Users, tasks, submissions and grade statistics for coursework management.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	shutdownTimeout    = 15 * time.Second
	fileCleanupWorkers = 2
)

type cacheBackend interface {
	service.CacheRepository
	Ping(ctx context.Context) error
	Close() error
}

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

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Info("database migrations applied")
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	backend, err := newCacheBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(backend, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	store, err := storage.NewLocalStorage(cfg.Files.StorageDir, cfg.Files.MaxFileSizeBytes)
	if err != nil {
		return fmt.Errorf("init file storage: %w", err)
	}
	files := service.NewFileService(store, storage.NewSigner(cfg.Files.SignedURLSecret, cfg.Files.SignedURLTTL), cfg.APIPrefix)
	stopCleanup := files.StartCleanup(ctx, fileCleanupWorkers, logr)
	defer stopCleanup()

	validate := validation.New()
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	userSvc := service.NewUserService(userRepo, submissionRepo, cacheSvc, validate, logr)
	taskSvc := service.NewTaskService(taskRepo, submissionRepo, files, cacheSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, userRepo, taskRepo, files, cacheSvc, metrics, validate, logr)
	statisticsSvc := service.NewStatisticsService(userRepo, taskRepo, submissionRepo, metrics, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, metrics, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})

	if cfg.Seed.DefaultUsers {
		created, err := service.NewSeedService(userRepo, userSvc, logr).SeedDefaultUsers(ctx, service.DefaultAccounts)
		if err != nil {
			return fmt.Errorf("seed default users: %w", err)
		}
		logr.Sugar().Infow("default accounts ensured", "created", created)
	}

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, userSvc),
		Users:       handler.NewUserHandler(userSvc),
		Tasks:       handler.NewTaskHandler(taskSvc),
		Submissions: handler.NewSubmissionHandler(submissionSvc),
		Files:       handler.NewFileHandler(submissionSvc),
		Statistics:  handler.NewStatisticsHandler(statisticsSvc),
		Metrics:     handler.NewMetricsHandler(metrics, databaseCheck(db), handler.ReadinessCheck{Name: "cache", Probe: backend.Ping}),
	}

	r := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		EnableMetrics:  metrics != nil,
	}, handlers, authSvc, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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

func newCacheBackend(ctx context.Context, cfg *config.Config) (cacheBackend, error) {
	if cfg.Cache.Enabled && cfg.Cache.Driver == config.CacheDriverRedis {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return repository.NewRedisCacheRepository(client), nil
	}
	return repository.NewMemoryCacheRepository(cache.NewMemory(cfg.Cache)), nil
}

func databaseCheck(db *sqlx.DB) handler.ReadinessCheck {
	return handler.ReadinessCheck{Name: "database", Probe: db.PingContext}
}
