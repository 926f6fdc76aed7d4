package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/category"
	"github.com/noah-isme/activity-credit-api/internal/config"
	"github.com/noah-isme/activity-credit-api/internal/database"
	"github.com/noah-isme/activity-credit-api/internal/handler"
	"github.com/noah-isme/activity-credit-api/internal/middleware"
	"github.com/noah-isme/activity-credit-api/internal/observability"
	"github.com/noah-isme/activity-credit-api/internal/repository"
	"github.com/noah-isme/activity-credit-api/internal/router"
	"github.com/noah-isme/activity-credit-api/internal/service"
	cloud "github.com/noah-isme/activity-credit-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.AppRelease)
	if err != nil {
		logger.Warn().Err(err).Msg("sentry disabled")
	}
	defer flushSentry()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, lifecycle events go to redis only")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	var storage service.FileStorage = cloud.Disabled{}
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Configured() {
		uploader, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary credentials missing, attachment uploads disabled")
	}

	validate := service.NewValidator()
	categories := category.DefaultRegistry()

	activityRepo := repository.NewActivityRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	userRepo := repository.NewUserRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	events := service.NewEventPublisher(redisClient, cfg.EventsChannel, natsConn, logger)
	confirmations := service.NewConfirmationService(redisClient, cfg.EventsChannel, cfg.ConfirmationTTL, logger)

	activityService := service.NewActivityService(activityRepo, categories, confirmations, auditService, events, validate, logger)
	participantService := service.NewParticipantService(participantRepo, auditService, events, validate, logger)
	applicationService := service.NewApplicationService(applicationRepo, activityRepo, service.ApplicationPolicy{
		RequireApprovedActivity: cfg.RequireApprovedActivity,
	}, auditService, events, validate, logger)
	attachmentService := service.NewAttachmentService(attachmentRepo, activityRepo, storage, auditService, cfg.UploadMaxSizeMB, logger)
	exportService := service.NewExportService(activityRepo, userRepo, logger)
	categoryService := service.NewCategoryService(categories)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:    handler.NewActivityHandler(activityService, exportService, logger),
		ParticipantHandler: handler.NewParticipantHandler(participantService, logger),
		AttachmentHandler:  handler.NewAttachmentHandler(attachmentService, logger),
		ApplicationHandler: handler.NewApplicationHandler(applicationService, logger),
		CategoryHandler:    handler.NewCategoryHandler(categoryService, logger),
		AuditHandler:       handler.NewAuditHandler(auditService, logger),
		HealthChecks: map[string]handler.Pinger{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		MutationLimiter: middleware.RateLimit("mutations", cfg.RateLimitMax, cfg.RateLimitWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
