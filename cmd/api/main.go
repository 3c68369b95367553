package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/calerio/duetrack/internal/channel"
	"github.com/calerio/duetrack/internal/config"
	"github.com/calerio/duetrack/internal/handler"
	"github.com/calerio/duetrack/internal/infra/postgresql"
	"github.com/calerio/duetrack/internal/infra/postgresql/migrations"
	infraredis "github.com/calerio/duetrack/internal/infra/redis"
	"github.com/calerio/duetrack/internal/observability"
	"github.com/calerio/duetrack/internal/repository"
	"github.com/calerio/duetrack/internal/service"
	"github.com/calerio/duetrack/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

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
		logger.Fatal("duetrack api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Redis only backs the reconciliation run marker; the service runs
	// without it.
	var rdb *goredis.Client
	var marker service.RunMarker
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		redisMarker, err := infraredis.NewRunMarker(rdb)
		if err != nil {
			return fmt.Errorf("run marker initialization failed: %w", err)
		}
		marker = redisMarker
	}

	metrics := observability.NewMetrics()

	expirationRepo := repository.NewGormExpirationRepo(db)
	historyRepo := repository.NewGormHistoryRepo(db)
	lookupRepo := repository.NewGormLookupRepo(db)
	ruleRepo := repository.NewGormAlertRuleRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	expirationService, err := service.NewExpirationService(expirationRepo, historyRepo, lookupRepo, logger)
	if err != nil {
		return fmt.Errorf("expiration service initialization failed: %w", err)
	}
	expirationService = expirationService.WithMetrics(metrics)

	alertService, err := service.NewAlertService(ruleRepo, attemptRepo, expirationRepo, logger)
	if err != nil {
		return fmt.Errorf("alert service initialization failed: %w", err)
	}

	matchMode, err := repository.ParseMatchMode(cfg.AlertMatchMode)
	if err != nil {
		return err
	}

	emailSender, err := channel.NewEmailSender(channel.EmailConfig{
		Server:    cfg.EmailServer,
		Port:      cfg.EmailPort,
		UseTLS:    cfg.EmailUseTLS,
		Username:  cfg.EmailUsername,
		Password:  cfg.EmailPassword,
		FromName:  cfg.EmailFromName,
		FromEmail: cfg.EmailFromEmail,
	}, channel.NewSMTPTransport())
	if err != nil {
		return fmt.Errorf("email sender initialization failed: %w", err)
	}

	pushSender, err := channel.NewPushSender(channel.PushConfig{
		Enabled:  cfg.PushEnabled,
		Service:  cfg.PushService,
		APIKey:   cfg.PushAPIKey,
		Endpoint: cfg.PushEndpoint,
	})
	if err != nil {
		return fmt.Errorf("push sender initialization failed: %w", err)
	}

	dispatcher, err := service.NewDispatcher(
		ruleRepo,
		attemptRepo,
		lookupRepo,
		[]channel.Sender{emailSender, pushSender, channel.NewDesktopSender(cfg.DesktopEnabled)},
		matchMode,
		logger,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}

	reconciler, err := service.NewReconciler(expirationService, marker, cfg.ReconcileInterval, logger, metrics)
	if err != nil {
		return fmt.Errorf("reconciler initialization failed: %w", err)
	}

	scanner, err := service.NewAlertScanner(dispatcher, cfg.AlertScanInterval, logger)
	if err != nil {
		return fmt.Errorf("alert scanner initialization failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterExpirationRoutes(app, expirationService); err != nil {
		return err
	}
	if err := handler.RegisterAlertRoutes(app, alertService, dispatcher); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return reconciler.Start(ctx)
	})
	group.Go(func() error {
		return scanner.Start(ctx)
	})
	group.Go(func() error {
		logger.Info("duetrack api listening", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return app.Shutdown()
	})

	return group.Wait()
}
