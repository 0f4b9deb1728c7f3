package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/easypark/notification-service/internal/channel"
	"github.com/easypark/notification-service/internal/config"
	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/handler"
	"github.com/easypark/notification-service/internal/infra/postgresql"
	"github.com/easypark/notification-service/internal/infra/postgresql/migrations"
	infraredis "github.com/easypark/notification-service/internal/infra/redis"
	"github.com/easypark/notification-service/internal/observability"
	"github.com/easypark/notification-service/internal/queue"
	"github.com/easypark/notification-service/internal/realtime"
	"github.com/easypark/notification-service/internal/repository"
	"github.com/easypark/notification-service/internal/service"
	"github.com/easypark/notification-service/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	metrics := observability.NewMetrics()

	// Repositories.
	notificationRepo := repository.NewGormNotificationRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)
	preferenceRepo := repository.NewGormPreferenceRepo(db)

	// Realtime hub with cross-instance presence.
	presence, err := realtime.NewRedisPresenceStore(rdb, time.Duration(cfg.PresenceTTLSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("presence store init failed: %w", err)
	}
	relay, err := realtime.NewRedisFrameRelay(rdb, logger)
	if err != nil {
		return fmt.Errorf("frame relay init failed: %w", err)
	}
	hub := realtime.NewHub(presence, relay, logger)
	registry, err := realtime.NewHubRegistry(hub, presence)
	if err != nil {
		return fmt.Errorf("connection registry init failed: %w", err)
	}

	// Outbound channels.
	realtimeChannel, err := channel.NewHubRealtimeChannel(hub)
	if err != nil {
		return fmt.Errorf("realtime channel init failed: %w", err)
	}
	pushChannel, err := channel.NewFCMPushChannel(cfg.FCMEndpoint, cfg.FCMServerKey)
	if err != nil {
		return fmt.Errorf("push channel init failed: %w", err)
	}
	emailChannel, err := channel.NewResendEmailChannel(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName)
	if err != nil {
		return fmt.Errorf("email channel init failed: %w", err)
	}

	// Queue plumbing.
	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	// Services.
	tracker, err := service.NewDeliveryTracker(notificationRepo, attemptRepo, logger)
	if err != nil {
		return err
	}
	resolver, err := service.NewPreferenceResolver(preferenceRepo, logger)
	if err != nil {
		return err
	}
	templateResolver, err := service.NewTemplateResolver(templateRepo, logger)
	if err != nil {
		return err
	}
	engine, err := service.NewDispatchEngine(notificationRepo, resolver, publisher, logger)
	if err != nil {
		return err
	}
	engine.SetMetrics(metrics)

	workers, err := service.NewWorkerService(
		notificationRepo,
		tracker,
		templateResolver,
		registry,
		service.ChannelSet{
			Realtime: realtimeChannel,
			Push:     pushChannel,
			Email:    emailChannel,
		},
		consumer,
		service.WorkerConfig{
			Concurrency:    cfg.WorkerConcurrency,
			SendTimeout:    time.Duration(cfg.SendTimeoutSeconds) * time.Second,
			BaseRetryDelay: time.Duration(cfg.RetryBaseDelaySeconds) * time.Second,
			MaxRetryDelay:  time.Duration(cfg.RetryMaxDelaySeconds) * time.Second,
		},
		logger,
	)
	if err != nil {
		return err
	}
	workers.SetMetrics(metrics)

	scanner, err := service.NewRetryScanner(notificationRepo, publisher, 0, 0, logger)
	if err != nil {
		return err
	}

	templateService, err := service.NewTemplateService(templateRepo, logger)
	if err != nil {
		return err
	}
	preferenceService, err := service.NewPreferenceService(preferenceRepo, logger)
	if err != nil {
		return err
	}

	// HTTP surface.
	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, rabbit)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterNotificationRoutes(app, tracker); err != nil {
		return err
	}
	if err := handler.RegisterTemplateRoutes(app, templateService); err != nil {
		return err
	}
	if err := handler.RegisterPreferenceRoutes(app, preferenceService); err != nil {
		return err
	}
	handler.RegisterWebsocketRoutes(app, hub, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	g.Go(func() error {
		logger.Info("event consumer started")
		return consumer.ConsumeEvents(groupCtx, func(ctx context.Context, event domain.NotificationEvent) error {
			_, err := engine.Handle(ctx, &event)
			return err
		})
	})

	g.Go(func() error {
		return workers.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("realtime frame relay started")
		return relay.Run(groupCtx, hub.DeliverLocal)
	})

	g.Go(func() error {
		logger.Info("retry scanner started")
		return scanner.Start(groupCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
