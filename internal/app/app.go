// Package app holds the wiring shared by the command line entry points.
package app

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/config"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/ffmpeg"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/opencv"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/pose"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/report"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"go.uber.org/zap"
)

func PoseConfig(cfg *config.Config) pose.Config {
	return pose.Config{
		Command:      cfg.PoseWorkerCmd,
		Args:         cfg.PoseWorkerArgs,
		StartTimeout: cfg.PoseStartup,
		FrameTimeout: cfg.PoseTimeout,
	}
}

// AnalyzeDeps builds the analyzer factory and the post-processing steps. The
// caller adds the repository and publisher it has.
func AnalyzeDeps(cfg *config.Config, log *zap.Logger) usecase.AnalyzeVideoDeps {
	deps := usecase.AnalyzeVideoDeps{
		Analyzers: usecase.NewAnalyzerFactory(
			pose.Factory(PoseConfig(cfg), log),
			opencv.NewCodec(cfg.VideoFourCC),
			log,
		),
		Charts: report.NewPlotter(),
		Zipper: report.NewArchiver(),
	}

	if _, err := exec.LookPath(cfg.FFprobeBinary); err == nil {
		deps.Prober = ffmpeg.NewProber(cfg.FFprobeBinary, log)
	} else {
		log.Info("ffprobe not found, video duration will not be recorded", zap.String("binary", cfg.FFprobeBinary))
	}

	if cfg.TranscodeH264 {
		if _, err := exec.LookPath(cfg.FFmpegBinary); err == nil {
			deps.Transcoder = ffmpeg.NewTranscoder(cfg.FFmpegBinary, log)
		} else {
			log.Warn("TRANSCODE_H264 set but ffmpeg not found", zap.String("binary", cfg.FFmpegBinary))
		}
	}
	return deps
}

// PoseWorkerCheck reports whether the pose worker command can be started.
func PoseWorkerCheck(cfg *config.Config) metrics.HealthCheck {
	return func(context.Context) error {
		if _, err := exec.LookPath(cfg.PoseWorkerCmd); err != nil {
			return fmt.Errorf("pose worker command: %w", err)
		}
		return nil
	}
}
