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
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/config"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/sqlite"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/tracing"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/studio"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"github.com/Fastpacer/Dance-Movement-Analysis/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting dance-analysis studio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName: "dance-studio",
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TraceRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer tp.Shutdown(ctx)
	}

	history, err := sqlite.Open(cfg.StudioDBPath)
	fatalOnErr(err, "open studio history")
	defer history.Close()

	deps := app.AnalyzeDeps(cfg, log)
	deps.Repo = history
	analyze := usecase.NewAnalyzeVideoUseCase(deps, log)

	ui, err := studio.NewServer(studio.Config{
		UploadDir:      cfg.UploadDir,
		TempDir:        cfg.TempDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, analyze, history, log)
	fatalOnErr(err, "create studio server")

	srv := &http.Server{
		Addr:              cfg.StudioAddr,
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthCheck{
		"history":     history.Ping,
		"pose_worker": app.PoseWorkerCheck(cfg),
	})

	go func() {
		log.Info("studio listening", zap.String("addr", cfg.StudioAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("studio server error", zap.Error(err))
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("studio server shutdown", zap.Error(err))
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("dance-analysis studio stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
