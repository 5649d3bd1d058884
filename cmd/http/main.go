package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hilthontt/cheahlytics/internal/infrastructure/configs"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/env"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/events"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/jobs"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/messaging"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/metrics"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/session"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/tracing"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/ws"
	"github.com/hilthontt/cheahlytics/internal/persistence/db"
	"github.com/hilthontt/cheahlytics/internal/persistence/repository"
	"github.com/hilthontt/cheahlytics/internal/presentation/api"
	"github.com/hilthontt/cheahlytics/internal/presentation/handler/applications"
	eventsHandler "github.com/hilthontt/cheahlytics/internal/presentation/handler/events"
	"github.com/hilthontt/cheahlytics/internal/presentation/handler/health"
	"github.com/hilthontt/cheahlytics/internal/presentation/handler/tracker"
	"github.com/hilthontt/cheahlytics/internal/presentation/handler/users"
	"github.com/hilthontt/cheahlytics/internal/usecases/accounts"
	applicationsUseCase "github.com/hilthontt/cheahlytics/internal/usecases/applications"
	"github.com/hilthontt/cheahlytics/internal/usecases/ingestion"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	env.LoadDotEnv()

	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		AppName:  configs.ServiceName,
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(configs.ServiceName, cfg.Tracing)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer shutdownTracer(context.Background())

	gormDB, err := db.NewGormDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal(logging.Database, logging.Startup, "failed to open database", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		logger.Fatal(logging.Database, logging.Migration, "failed to migrate database", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal(logging.Database, logging.Startup, "failed to access connection pool", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	checks := map[string]health.Check{"database": sqlDB.PingContext}

	userRepository := repository.NewUserRepository(gormDB)
	applicationRepository := repository.NewApplicationRepository(gormDB)
	eventRepository := repository.NewEventRepository(gormDB)

	m := metrics.New()
	ingestionOpts := []ingestion.Option{ingestion.WithMetrics(m)}
	var applicationOpts []applicationsUseCase.Option

	if cfg.MongoDB.Enabled {
		mongoClient, err := db.NewMongoClient(ctx, cfg.MongoDB)
		if err != nil {
			logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer db.DisconnectMongo(context.Background(), mongoClient)

		auditLog := repository.NewIngestionAuditLogRepository(mongoClient.Database(cfg.MongoDB.Database), cfg.MongoDB.AuditRetention)
		if err := auditLog.EnsureIndexes(ctx); err != nil {
			logger.Warn(logging.MongoDB, logging.Startup, "failed to ensure audit log indexes", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}

		ingestionOpts = append(ingestionOpts, ingestion.WithAuditLog(auditLog))
		applicationOpts = append(applicationOpts, applicationsUseCase.WithAuditLog(auditLog))

		cleanup := jobs.NewAuditCleanupJob(auditLog, logger, cfg.MongoDB.AuditRetention, cfg.MongoDB.AuditSweepEvery)
		go cleanup.Start(ctx)
		defer cleanup.Stop()
		checks["mongodb"] = func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		}
	}

	wsCore := ws.NewCore(eventRepository, logger, m.LiveSubscribers)
	go wsCore.Run(ctx)

	// With a broker every replica feeds its live subscribers from the
	// broker, so the local feed must not also be notified directly.
	if cfg.RabbitMQ.Enabled {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer rabbitmq.Close()

		ingestionOpts = append(ingestionOpts, ingestion.WithNotifiers(events.NewEventPublisher(rabbitmq)))
		checks["rabbitmq"] = func(context.Context) error {
			if rabbitmq.Channel.IsClosed() {
				return errors.New("channel closed")
			}
			return nil
		}

		consumer := events.NewEventConsumer(rabbitmq, wsCore, logger)
		go func() {
			if err := consumer.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(logging.RabbitMQ, logging.Subscription, "event consumer stopped", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
			}
		}()
	} else {
		ingestionOpts = append(ingestionOpts, ingestion.WithNotifiers(wsCore))
	}

	rl, err := newRateLimiter(cfg, checks)
	if err != nil {
		logger.Fatal(logging.Redis, logging.Startup, "failed to connect to redis", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer rl.Close()

	sessions := session.NewManager(cfg.Session)
	accountUseCase := accounts.NewAccountUseCase(userRepository, logger)
	applicationUseCase := applicationsUseCase.NewApplicationUseCase(applicationRepository, eventRepository, cfg.HTTP.PublicURL, logger, applicationOpts...)
	ingestionUseCase := ingestion.NewIngestionUseCase(applicationRepository, eventRepository, logger, ingestionOpts...)

	trackerHandler, err := tracker.NewHandler(cfg.HTTP.PublicURL)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to render tracker script", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	handlers := api.Handlers{
		Events:       eventsHandler.NewHandler(ingestionUseCase),
		Applications: applications.NewHandler(applicationUseCase, wsCore, logger),
		Users:        users.NewHandler(accountUseCase, sessions, logger),
		Health:       health.NewHandler(checks),
		Tracker:      trackerHandler,
	}

	app := api.NewApplication(*cfg, handlers, accountUseCase, sessions, m, logger, rl)

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Error(logging.General, logging.Shutdown, "server stopped", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func newRateLimiter(cfg *configs.Config, checks map[string]health.Check) (*ratelimiter.RateLimiter, error) {
	opts := ratelimiter.Options{
		MaxRatePerSecond:  cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:          cfg.RateLimiter.MaxBurst,
		CacheTTL:          cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:   cfg.RateLimiter.SourceHeaderKey,
		TrustSourceHeader: cfg.HTTP.TrustProxyHeaders,
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping %s: %w", cfg.Redis.Addr, err)
		}

		opts.Cache = ratelimiter.NewRedis(client)
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}

	return ratelimiter.New(opts), nil
}
