package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bulkwave/bulkwave/internal/config"
	"github.com/bulkwave/bulkwave/internal/dispatch"
	"github.com/bulkwave/bulkwave/internal/events"
	"github.com/bulkwave/bulkwave/internal/handler"
	"github.com/bulkwave/bulkwave/internal/infra/postgresql"
	"github.com/bulkwave/bulkwave/internal/infra/postgresql/migrations"
	infraredis "github.com/bulkwave/bulkwave/internal/infra/redis"
	"github.com/bulkwave/bulkwave/internal/observability"
	"github.com/bulkwave/bulkwave/internal/provider"
	"github.com/bulkwave/bulkwave/internal/registry"
	"github.com/bulkwave/bulkwave/internal/repository"
	"github.com/bulkwave/bulkwave/internal/service"
	"github.com/bulkwave/bulkwave/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := events.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	redisPublisher, err := events.NewRedisPublisher(rdb, logger)
	if err != nil {
		logger.Fatal("redis publisher initialization failed", zap.Error(err))
	}
	publisher := events.NewFanout(redisPublisher, events.NewRabbitMQPublisher(rabbit))
	defer publisher.Close()

	metrics := observability.NewMetrics()

	waProvider, err := provider.NewCloudAPIProvider(cfg.WhatsAppAPIBaseURL)
	if err != nil {
		logger.Fatal("whatsapp provider initialization failed", zap.Error(err))
	}

	sendLimiter, err := infraredis.NewSendRateLimiter(rdb, cfg.AccountRateLimitPerSec)
	if err != nil {
		logger.Fatal("send rate limiter initialization failed", zap.Error(err))
	}

	sender, err := dispatch.NewTransport(
		waProvider,
		sendLimiter,
		cfg.SendMaxAttempts,
		time.Duration(cfg.SendTimeoutSeconds)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("message transport initialization failed", zap.Error(err))
	}
	sender.SetMetrics(metrics)

	campaignLog := repository.NewGormCampaignLogRepo(db)

	loopDispatcher, err := dispatch.NewLoopDispatcher(sender, campaignLog, publisher, logger)
	if err != nil {
		logger.Fatal("loop dispatcher initialization failed", zap.Error(err))
	}

	poolDispatcher, err := dispatch.NewPoolDispatcher(sender, campaignLog, publisher, cfg.PoolConcurrency, logger)
	if err != nil {
		logger.Fatal("pool dispatcher initialization failed", zap.Error(err))
	}

	credentials, err := buildCredentialResolver(cfg, db)
	if err != nil {
		logger.Fatal("credential resolver initialization failed", zap.Error(err))
	}

	jobService, err := service.NewBulkJobService(
		registry.NewMemoryRegistry(),
		credentials,
		loopDispatcher,
		poolDispatcher,
		publisher,
		logger,
	)
	if err != nil {
		logger.Fatal("job service initialization failed", zap.Error(err))
	}
	jobService.SetMetrics(metrics)
	defer jobService.Close()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterJobRoutes(app, jobService, redisPublisher); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	if err := handler.RegisterCampaignRoutes(app, campaignLog); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		logger.Info("bulkwave api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

// buildCredentialResolver prefers static single-tenant credentials from
// the environment; otherwise owners are looked up in wa_accounts.
func buildCredentialResolver(cfg *config.Config, db *gorm.DB) (repository.CredentialResolver, error) {
	if cfg.WhatsAppPhoneNumberID != "" && cfg.WhatsAppAccessToken != "" {
		return repository.NewStaticCredentialResolver(provider.Credentials{
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			AccessToken:   cfg.WhatsAppAccessToken,
		})
	}
	return repository.NewGormAccountRepo(db), nil
}
