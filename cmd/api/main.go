package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/app"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/httpapi"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/config"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
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

	log.Info("starting dance-analysis api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: "dance-api",
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TraceRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer tp.Shutdown(ctx)
	}

	checks := map[string]metrics.HealthCheck{
		"pose_worker": app.PoseWorkerCheck(cfg),
	}
	deps := app.AnalyzeDeps(cfg, log)

	// Database (optional)
	var repo port.AnalysisRepository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		fatalOnErr(err, "connect to postgres")
		defer pool.Close()

		if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		pg := postgres.NewAnalysisRepository(pool)
		repo = pg
		deps.Repo = pg
		checks["postgres"] = pg.Ping
	} else {
		log.Info("DATABASE_URL not set, analyses will not be stored")
	}

	// Status events (optional)
	if cfg.PublishEvents {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		fatalOnErr(err, "connect to rabbitmq")
		defer conn.Close()

		pub, err := rabbitmq.NewPublisher(conn, rabbitmq.Topology{
			Exchange:     cfg.RabbitMQExchange,
			RequestQueue: cfg.RabbitMQRequestQueue,
			StatusQueue:  cfg.RabbitMQStatusQueue,
			DLQ:          cfg.RabbitMQDLQ,
		})
		fatalOnErr(err, "create rabbitmq publisher")
		defer pub.Close()
		deps.Publisher = rabbitmq.NewStatusPublisher(pub)
	}

	analyze := usecase.NewAnalyzeVideoUseCase(deps, log)

	api, err := httpapi.NewServer(httpapi.Config{
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, analyze, repo, log)
	fatalOnErr(err, "create http server")

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, checks)

	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// Analyses in flight may take a while; give them time to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("dance-analysis api stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
