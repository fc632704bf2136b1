package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hvill/identity-service/internal/api"
	"github.com/hvill/identity-service/internal/core/ports"
	"github.com/hvill/identity-service/internal/core/service"
	"github.com/hvill/identity-service/internal/infrastructure/broker"
	mongodb "github.com/hvill/identity-service/internal/infrastructure/db/mongo"
	redisdb "github.com/hvill/identity-service/internal/infrastructure/db/redis"
	"github.com/hvill/identity-service/internal/infrastructure/gateway"
	"github.com/hvill/identity-service/internal/infrastructure/mail"
	"github.com/hvill/identity-service/internal/infrastructure/queue"
	"github.com/hvill/identity-service/internal/infrastructure/scheduling"
	"github.com/hvill/identity-service/internal/pkg/config"
	"github.com/hvill/identity-service/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Service: "identity-service",
		Pretty:  cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer func() { _ = rdb.Close() }()

	identityRepo := mongodb.NewIdentityRepository(db)
	verificationRepo := mongodb.NewVerificationRepository(db)
	loginLogRepo := mongodb.NewLoginLogRepository(db)
	otpStore := redisdb.NewOTPStore(rdb, cfg.Redis.OTPTTL)

	if err := identityRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("identity index bootstrap failed")
	}
	if err := verificationRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("verification index bootstrap failed")
	}

	// --- Broker ---
	publisher, err := broker.Connect(cfg.Rabbit.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	defer func() { _ = publisher.Close() }()

	// --- External collaborators ---
	verificationGateway := gateway.NewClient(
		gateway.NewOCRClient(cfg.OCR.BaseURL, cfg.OCR.APIKey, log),
		gateway.NewFaceClient(cfg.Face.BaseURL, cfg.Face.APIKey, log),
	)
	mailer := mail.NewMailer(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	schedulingClient := scheduling.NewClient(cfg.Scheduling.BaseURL, cfg.Scheduling.APIKey)

	// --- Background task runner ---
	runner := queue.NewRunner(cfg.Tasks.Workers, log)

	// --- Services ---
	registrationService := service.NewRegistrationService(
		identityRepo, verificationRepo, otpStore,
		verificationGateway, mailer, runner, publisher, log,
	)
	authService := service.NewAuthService(identityRepo, loginLogRepo, cfg.JWTSecret, cfg.TokenTTL, log)
	staffService := service.NewStaffService(identityRepo, schedulingClient, log)
	janitor := service.NewDraftJanitor(identityRepo, cfg.Tasks.DraftRetention, cfg.Tasks.SweepInterval, log)

	// Face enrollment: 3 attempts, 2s base backoff. Notification: 5 attempts,
	// 1s base backoff. Both double the delay per attempt.
	runner.Register(ports.TaskFaceEnrollment,
		queue.RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second},
		registrationService.HandleFaceEnrollment,
		registrationService.FaceEnrollmentExhausted,
	)
	runner.Register(ports.TaskNotification,
		queue.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second},
		registrationService.HandleNotification,
		registrationService.NotificationExhausted,
	)
	runner.Start(ctx)
	go janitor.Run(ctx)

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		Registration: registrationService,
		Auth:         authService,
		Staff:        staffService,
		Scheduling:   schedulingClient,
		Mongo:        db,
		Redis:        rdb,
		JWTSecret:    cfg.JWTSecret,
		Log:          log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("identity service started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	runner.Wait()
}
