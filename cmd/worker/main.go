package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/app"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/config"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/email"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	miniostorage "github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/minio"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/postgres"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/rabbitmq"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/tracing"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"github.com/Fastpacer/Dance-Movement-Analysis/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("dance-analysis worker failed", zap.Error(err))
		log.Sync()
		panic(err)
	}
	log.Info("dance-analysis worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required by the worker")
	}

	tp, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: "dance-worker",
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TraceRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(flushCtx)
		}()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		ResultBucket: cfg.MinIOResultBucket,
	})
	if err != nil {
		return fmt.Errorf("create minio storage: %w", err)
	}
	if err := storage.EnsureBuckets(ctx); err != nil {
		return fmt.Errorf("ensure minio buckets: %w", err)
	}

	topology := queueTopology(cfg)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	pub, err := rabbitmq.NewPublisher(conn, topology)
	if err != nil {
		return fmt.Errorf("create rabbitmq publisher: %w", err)
	}
	defer pub.Close()

	repo := postgres.NewAnalysisRepository(pool)

	// The job use case owns status events; the analysis itself publishes none.
	deps := app.AnalyzeDeps(cfg, log)
	deps.Repo = repo

	job := usecase.NewProcessJobUseCase(
		usecase.NewAnalyzeVideoUseCase(deps, log),
		repo,
		storage,
		rabbitmq.NewStatusPublisher(pub),
		rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ),
		email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
		log,
		usecase.ProcessJobConfig{TempDir: cfg.TempDir},
	)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthCheck{
		"postgres":    repo.Ping,
		"minio":       storage.Ping,
		"pose_worker": app.PoseWorkerCheck(cfg),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Topology:    topology,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
	}, job.Execute, log)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Warn("close consumer", zap.Error(err))
		}
	}()

	log.Info("dance-analysis worker consuming",
		zap.String("queue", topology.RequestQueue),
		zap.Int("workers", cfg.WorkerCount),
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume: %w", err)
	}
	log.Info("shutdown signal received, draining")
	return nil
}

func queueTopology(cfg *config.Config) rabbitmq.Topology {
	return rabbitmq.Topology{
		Exchange:     cfg.RabbitMQExchange,
		RequestQueue: cfg.RabbitMQRequestQueue,
		StatusQueue:  cfg.RabbitMQStatusQueue,
		DLQ:          cfg.RabbitMQDLQ,
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
