package main

import (
	"context"
	"log"
	"time"

	"github.com/noah-isme/coursework-api/internal/repository"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/pkg/config"
	"github.com/noah-isme/coursework-api/pkg/database"
	"github.com/noah-isme/coursework-api/pkg/logger"
	"github.com/noah-isme/coursework-api/pkg/validation"
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db.DB); err != nil {
		logr.Sugar().Fatalw("failed to migrate", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	users := service.NewUserService(userRepo, repository.NewSubmissionRepository(db), nil, validation.New(), logr)
	created, err := service.NewSeedService(userRepo, users, logr).SeedDefaultUsers(ctx, service.DefaultAccounts)
	if err != nil {
		logr.Sugar().Fatalw("seeding failed", "error", err)
	}
	logr.Sugar().Infow("seed complete", "created", created, "total", len(service.DefaultAccounts))
}
