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

	"github.com/cuttothechaseo/ai-finance-sub001/internal/ai"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/handler"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/router"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/api/storage"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/auth"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/extract"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/filestore"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/migrate"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/payment"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/scheduler"
	"github.com/cuttothechaseo/ai-finance-sub001/internal/worker"
	workerstorage "github.com/cuttothechaseo/ai-finance-sub001/internal/worker/storage"
	"github.com/cuttothechaseo/ai-finance-sub001/shared/logger"
	"github.com/cuttothechaseo/ai-finance-sub001/shared/postgresql"
	"github.com/cuttothechaseo/ai-finance-sub001/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const serviceName = "api-service"

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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("dispatch_mode", cfg.Scheduler.DispatchMode),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		_, err := migrate.Up(migrateCtx, dbClient.GetDB(), appLogger.Logger)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	healthChecks := map[string]handler.HealthChecker{"database": dbClient}

	var dispatcher scheduler.Dispatcher
	if cfg.UsesQueue() {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		appLogger.Info("RabbitMQ connection established")
		healthChecks["rabbitmq"] = rabbitClient
		dispatcher = scheduler.NewQueueDispatcher(rabbitClient)
	}

	aiService, err := initAI(cfg.AI, appLogger.Logger)
	if err != nil {
		return err
	}

	fetcher := filestore.NewFetcher(cfg.Storage, appLogger.Logger)
	extractor := extract.New(cfg.Extract, appLogger.Logger)

	if dispatcher == nil {
		processor := worker.NewProcessor(&worker.ProcessorConfig{
			Logger:            appLogger.Logger,
			Store:             workerstorage.NewStorage(dbClient.GetDB(), appLogger.Logger),
			Fetcher:           fetcher,
			Extractor:         extractor,
			Analyzer:          aiService,
			WorkerID:          fmt.Sprintf("%s-%s", serviceName, uuid.NewString()[:8]),
			JobTimeout:        cfg.Worker.JobTimeout,
			HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		})
		dispatcher = scheduler.NewInlineDispatcher(processor)
	}

	trigger := scheduler.New(
		workerstorage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		dispatcher,
		cfg.Scheduler.BatchSize,
		serviceName,
		appLogger.Logger,
	)

	deps := &handler.Dependencies{
		Logger:           appLogger.Logger,
		Store:            storage.NewStorage(dbClient),
		AI:               aiService,
		Fetcher:          fetcher,
		Extractor:        extractor,
		Scheduler:        trigger,
		Payments:         payment.NewClient(cfg.Payment, appLogger.Logger),
		Verifier:         auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience),
		HealthCheck:      healthChecks,
		ServiceName:      serviceName,
		TriggerAPIKey:    cfg.Scheduler.TriggerAPIKey,
		InternalSecret:   cfg.Auth.InternalSecret,
		DispatchOnCreate: cfg.Scheduler.DispatchOnCreate,
	}

	r := initRouter(cfg, deps)

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
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
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
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		DSN:             cfg.URL,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client used to publish job messages
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		URL:                cfg.URL,
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initAI builds the AI service. Without an API key the service still
// starts and AI-backed routes answer "AI provider not configured".
func initAI(cfg config.AIConfig, logger *slog.Logger) (*ai.Service, error) {
	validator, err := ai.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile AI response schemas: %w", err)
	}

	var completer ai.Completer
	gemini, err := ai.NewGeminiCompleter(context.Background(), cfg)
	switch {
	case err == nil:
		completer = gemini
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("GEMINI_API_KEY not set, AI features disabled")
	default:
		return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
	}

	return ai.NewService(completer, validator, logger), nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, cfg.Server.AllowedOrigins)
}
