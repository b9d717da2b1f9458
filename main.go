package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/activityruns"
	"github.com/Ramsey-B/fern/internal/repositories/catalog"
	"github.com/Ramsey-B/fern/internal/repositories/pipelineruns"
	"github.com/Ramsey-B/fern/internal/repositories/triggerruns"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/datafactory"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/extract"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	extractroute "github.com/Ramsey-B/fern/pkg/routes/extract"
	"github.com/Ramsey-B/fern/pkg/routes/health"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to warehouse")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	activityRepo := activityruns.NewRepository(db, logger)
	pipelineRepo := pipelineruns.NewRepository(db, logger)
	triggerRepo := triggerruns.NewRepository(db, logger)
	catalogRepo := catalog.NewRepository(db, logger)

	adfClient := datafactory.NewClient(datafactory.Config{
		SubscriptionID: cfg.ADFSubscriptionID,
		TenantID:       cfg.ADFTenantID,
		ClientID:       cfg.ADFClientID,
		ClientSecret:   cfg.ADFClientSecret,
		Endpoint:       cfg.ADFEndpoint,
		LoginEndpoint:  cfg.ADFLoginEndpoint,
		RequestsPerMin: cfg.ADFRequestsPerMin,
		Timeout:        time.Duration(cfg.ADFTimeoutSeconds) * time.Second,
	}, logger)

	var redisClient *redis.Client
	var locker extract.Locker
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = &redisLocker{locker: redis.NewLocker(redisClient, "extract:")}
	}

	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	service := extract.NewService(
		activityRepo,
		pipelineRepo,
		triggerRepo,
		catalogRepo,
		adfClient,
		locker,
		emitter,
		logger,
		extract.Options{
			DefaultAPILimit:   cfg.ExtractAPILimit,
			DefaultListLimit:  cfg.ExtractListLimit,
			DefaultOffsetDays: cfg.ExtractOffsetDays,
			Actor:             cfg.ExtractActor,
			LockTTL:           time.Duration(cfg.ExtractLockTTLMinutes) * time.Minute,
		},
	)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.Use(middleware.Context(cfg.ExtractActor))
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	extractroute.NewHandler(service).Register(e.Group("/api/v1/extract"))

	checker := health.NewChecker(db, healthPinger(redisClient), cfg.AppName)
	checker.RegisterRoutes(e)
	checker.SetReady(true)

	logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.WithError(err).Error("Server stopped")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		var out []byte
		if cfg.PrettyLogs {
			out, _ = json.MarshalIndent(msg, "", "  ")
		} else {
			out, _ = json.Marshal(msg)
		}
		fmt.Fprintln(os.Stdout, string(out))
	})
}

func runMigrations(cfg config.Config, db database.DB, logger ectologger.Logger) error {
	driver, err := postgres.WithInstance(db.Unsafe().DB, &postgres.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	return migrationService.Migrate(cfg.DatabaseName, driver)
}

// redisLocker adapts the Redis locker to the extract service's interface.
type redisLocker struct {
	locker *redis.Locker
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (extract.Lock, error) {
	lock, err := l.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// healthPinger avoids handing the checker a non-nil interface wrapping a nil
// client when Redis is disabled.
func healthPinger(client *redis.Client) health.Pinger {
	if client == nil {
		return nil
	}
	return client
}
