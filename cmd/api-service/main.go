package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/open-job-board/internal/api/handler"
	"github.com/cuongbtq/open-job-board/internal/api/router"
	"github.com/cuongbtq/open-job-board/internal/api/storage"
	"github.com/cuongbtq/open-job-board/internal/api/touch"
	"github.com/cuongbtq/open-job-board/internal/config"
	"github.com/cuongbtq/open-job-board/internal/ratelimit"
	"github.com/cuongbtq/open-job-board/internal/validation"
	"github.com/cuongbtq/open-job-board/shared/logger"
	"github.com/cuongbtq/open-job-board/shared/pool"
	"github.com/cuongbtq/open-job-board/shared/postgresql"
	"github.com/cuongbtq/open-job-board/shared/rabbitmq"
	"github.com/cuongbtq/open-job-board/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
		slog.String("touch_mode", cfg.Touch.Mode),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(ctx, &cfg.Database, cfg.App.Name, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	store := storage.NewStorage(dbClient)

	counter, closeCounter, err := initCounter(ctx, cfg, store, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limit counter: %w", err)
	}
	defer closeCounter()

	touchPool, err := pool.New(ctx, pool.Config{
		Name:        "touch",
		Size:        cfg.Touch.PoolSize,
		Nonblocking: true,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize touch pool: %w", err)
	}

	toucher, rabbitClient, err := initToucher(cfg, touchPool, store, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize touch dispatcher: %w", err)
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, store, dbClient, ratelimit.NewGate(store, counter, toucher, cfg.RateLimit.Window, appLogger.Logger))

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		slog.Int64("max_body_bytes", cfg.Server.MaxBodyBytes),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed to start", slog.Any("error", err))
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	// Let in-flight touches finish before the publisher and database go away
	touchPool.Shutdown(cfg.Touch.Timeout)
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, appName string, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		ApplicationName: appName,
		ConnectTimeout:  cfg.ConnectTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(ctx, dbConfig, logger)
}

// initCounter builds the rate limit counter for the configured backend.
// The returned func releases whatever the backend holds.
func initCounter(ctx context.Context, cfg *config.Config, store *storage.Storage, logger *slog.Logger) (ratelimit.Counter, func(), error) {
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, &redis.Config{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return ratelimit.NewRedisCounter(rdb), func() { rdb.Close() }, nil

	case config.BackendMemory:
		logger.Warn("Using in-process rate limit counter, limits are per replica")
		counter := ratelimit.NewMemoryCounter(cfg.RateLimit.MemoryIdleTTL)
		counter.StartJanitor(ctx, cfg.RateLimit.MemoryIdleTTL)
		return counter, func() {}, nil

	default:
		return ratelimit.CounterFunc(store.CheckRateLimit), func() {}, nil
	}
}

// initToucher picks how credential use is recorded. Queue mode also returns
// the RabbitMQ client so the caller can close it.
func initToucher(cfg *config.Config, p *pool.Pool, store *storage.Storage, logger *slog.Logger) (ratelimit.Toucher, *rabbitmq.Client, error) {
	if cfg.Touch.Mode != config.TouchModeQueue {
		return touch.NewDirectToucher(p, store, cfg.Touch.Timeout, logger), nil, nil
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, logger)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("RabbitMQ connection established")

	return touch.NewQueueToucher(p, rabbitClient, cfg.Touch.Timeout, logger), rabbitClient, nil
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, store *storage.Storage, health handler.HealthChecker, gate *ratelimit.Gate) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	createKey, submitJob := handler.PoliciesFromConfig(&cfg.RateLimit)

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:             logger,
		Gate:               gate,
		Credentials:        store,
		Jobs:               store,
		Health:             health,
		Validator:          validation.New(),
		CreateKeyPolicy:    createKey,
		SubmitJobPolicy:    submitJob,
		DefaultKeyRequests: cfg.RateLimit.DefaultKeyRequests,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
	}

	// Setup router
	return router.SetupRouter(handlerDeps, cfg.App.Name)
}
