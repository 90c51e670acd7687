package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/book-ingest/internal/config"
	"github.com/cuongbtq/book-ingest/internal/embedding"
	"github.com/cuongbtq/book-ingest/internal/index"
	"github.com/cuongbtq/book-ingest/internal/pipeline"
	"github.com/cuongbtq/book-ingest/internal/quality"
	"github.com/cuongbtq/book-ingest/internal/storage"
	"github.com/cuongbtq/book-ingest/internal/worker"
	"github.com/cuongbtq/book-ingest/shared/logger"
	"github.com/cuongbtq/book-ingest/shared/postgresql"
	"github.com/cuongbtq/book-ingest/shared/rabbitmq"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if err := storage.EnsureSchema(context.Background(), dbClient.DB()); err != nil {
		return err
	}

	chunkIndex, err := index.Open(cfg.Index.Path, cfg.Index.InMemory, appLogger.Logger)
	if err != nil {
		return err
	}
	defer chunkIndex.Close()

	orchestrator, gate, err := initPipeline(cfg, dbClient, chunkIndex, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer gate.Release()

	retry := worker.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}.WithDefaults()

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, retry.Delays(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established",
		slog.Int("retry_stages", rabbitClient.RetryStages()),
	)

	workerInstance, err := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Broker:        rabbitClient,
		Runner:        orchestrator,
		Jobs:          storage.NewPostgresJobStore(dbClient.DB(), appLogger.Logger),
		WorkerID:      cfg.Worker.ID,
		QueueName:     cfg.RabbitMQ.Queue.Name,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
		Retry:         retry,
	})
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
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
	}, logger)
}

// initPipeline wires the stores, quality gate, embedder and index into an
// orchestrator. The caller releases the gate.
func initPipeline(cfg *config.Config, db *postgresql.Client, chunkIndex *index.Index, logger *slog.Logger) (*pipeline.Orchestrator, *quality.Gate, error) {
	catalogs, err := storage.NewPostgresCatalogs(db.DB(), cfg.Pipeline.Catalogs, logger)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, nil, err
	}

	gate, err := quality.NewGate(quality.NewClassifier(cfg.Quality, logger), cfg.Pipeline.ClassifierPoolSize, logger)
	if err != nil {
		return nil, nil, err
	}

	orchestrator, err := pipeline.New(
		storage.NewPostgresJobStore(db.DB(), logger),
		storage.NewPostgresDocumentStore(db.DB(), logger),
		gate,
		embedder,
		chunkIndex,
		pipeline.WithUploadDir(cfg.Pipeline.UploadDir),
		pipeline.WithChunking(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap),
		pipeline.WithCatalogs(catalogs),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		gate.Release()
		return nil, nil, err
	}

	return orchestrator, gate, nil
}

// initRabbitMQ initializes the RabbitMQ client and declares one delay queue
// per retry stage.
func initRabbitMQ(cfg *config.RabbitMQConfig, retryDelays []time.Duration, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
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
		RetryDelays:        retryDelays,
		DeadLetter:         cfg.Queue.DeadLetter,
	}, logger)
}
