// Package analyzer runs pose estimation over every frame of a video, overlays
// the skeleton and per-frame metrics, re-encodes the frames and summarizes the
// movement metrics of the whole clip.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// drawPose is replaced in tests.
var drawPose = drawSkeleton

const (
	progressEvery = 50
	fallbackFPS   = 30.0
)

// Analyzer owns one pose estimator. It is used by a single goroutine and must
// be released exactly once.
type Analyzer struct {
	pose     port.PoseEstimator
	codec    port.VideoCodec
	logger   *zap.Logger
	released bool
}

// Result is what ProcessVideo hands back. The output video exists even when
// Summary reports no detection.
type Result struct {
	OutputPath string
	Summary    movement.Summary
	Frames     []movement.FrameAnalysis
	Props      port.VideoProps
}

func New(pose port.PoseEstimator, codec port.VideoCodec, logger *zap.Logger) *Analyzer {
	return &Analyzer{pose: pose, codec: codec, logger: logger}
}

// Open starts a pose estimator with the default options and wraps it.
func Open(factory port.PoseEstimatorFactory, codec port.VideoCodec, logger *zap.Logger) (*Analyzer, error) {
	pose, err := factory(port.DefaultPoseOptions())
	if err != nil {
		return nil, fmt.Errorf("open pose estimator: %w", err)
	}
	return New(pose, codec, logger), nil
}

// ProcessFrame runs pose estimation on one BGR frame. It never fails: estimator
// errors and panics are logged and reported as FrameFailed with the original
// frame.
func (a *Analyzer) ProcessFrame(ctx context.Context, frame gocv.Mat) (res FrameResult) {
	res = FrameResult{Frame: frame, Outcome: FrameNoPose}

	defer func() {
		if r := recover(); r != nil {
			res.Close()
			res = FrameResult{Frame: frame, Outcome: FrameFailed, Err: fmt.Errorf("pose estimation panic: %v", r)}
		}
		if res.Outcome == FrameFailed {
			a.logger.Error("error processing frame", zap.Error(res.Err))
		}
		metrics.FramesProcessedTotal.WithLabelValues(res.Outcome.String()).Inc()
	}()

	if frame.Empty() {
		res.Outcome = FrameFailed
		res.Err = errors.New("empty frame")
		return res
	}

	start := time.Now()
	kps, err := a.pose.Estimate(ctx, frame)
	metrics.PoseInferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		res.Outcome = FrameFailed
		res.Err = err
		return res
	}
	if len(kps) == 0 {
		return res
	}

	res = FrameResult{Frame: frame.Clone(), Keypoints: kps, Outcome: FrameDetected, owned: true}
	drawPose(&res.Frame, kps)
	return res
}

// AnalyzeMovement derives the per-frame metrics of a keypoint set.
func (a *Analyzer) AnalyzeMovement(kps movement.Keypoints) movement.FrameAnalysis {
	return movement.AnalyzeMovement(kps)
}

// ProcessVideo analyses inputPath frame by frame and writes the annotated video
// to outputPath. Reader and writer are closed on every return path. A failed
// frame is written unannotated; a cancelled ctx or an estimator that is gone
// for good stops the run with ErrAborted.
func (a *Analyzer) ProcessVideo(ctx context.Context, inputPath, outputPath string) (out *Result, err error) {
	if _, statErr := os.Stat(inputPath); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenInput, inputPath, statErr)
	}

	log := a.logger.With(zap.String("input", inputPath), zap.String("output", outputPath))

	reader, err := a.codec.OpenReader(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenInput, inputPath, err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			log.Warn("close video reader", zap.Error(cerr))
		}
	}()

	props := reader.Props()
	if props.Width <= 0 || props.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid frame size %dx%d", ErrOpenInput, inputPath, props.Width, props.Height)
	}
	if props.FPS <= 0 {
		log.Warn("video reports no frame rate, using fallback", zap.Float64("fps", fallbackFPS))
		props.FPS = fallbackFPS
	}
	log.Info("video properties",
		zap.Int("width", props.Width),
		zap.Int("height", props.Height),
		zap.Float64("fps", props.FPS),
	)

	writer, err := a.codec.CreateWriter(outputPath, props)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCreateOutput, outputPath, err)
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			if err == nil {
				out, err = nil, fmt.Errorf("%w: finalize %s: %v", ErrCreateOutput, outputPath, cerr)
			} else {
				log.Warn("close video writer", zap.Error(cerr))
			}
		}
		log.Info("video resources released")
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	var frames []movement.FrameAnalysis
	total := 0
	for reader.Read(&frame) {
		if frame.Empty() {
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%w: before frame %d: %w", ErrAborted, total, cerr)
		}

		res := a.ProcessFrame(ctx, frame)
		if abort := abortCause(ctx, res); abort != nil {
			res.Close()
			log.Error("video processing aborted", zap.Int("frame", total), zap.Error(abort))
			return nil, fmt.Errorf("%w: frame %d: %w", ErrAborted, total, abort)
		}
		if res.Outcome == FrameDetected {
			analysis := a.AnalyzeMovement(res.Keypoints)
			analysis.Frame = total
			frames = append(frames, analysis)
			drawMetrics(&res.Frame, analysis)
		}

		werr := writer.Write(res.Frame)
		res.Close()
		if werr != nil {
			log.Error("error in video processing", zap.Int("frame", total), zap.Error(werr))
			return nil, fmt.Errorf("%w: frame %d: %v", ErrWriteFrame, total, werr)
		}

		total++
		if total%progressEvery == 0 {
			log.Info("processed frames", zap.Int("count", total))
		}
	}

	log.Info("video processing complete",
		zap.Int("total_frames", total),
		zap.Int("frames_with_detection", len(frames)),
	)

	props.FrameCount = total
	return &Result{
		OutputPath: outputPath,
		Summary:    movement.Summarize(total, frames),
		Frames:     frames,
		Props:      props,
	}, nil
}

// abortCause reports why no later frame can be analyzed: a finished context or
// an estimator that is gone for good. A failure of this frame alone is nil.
func abortCause(ctx context.Context, res FrameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.Outcome == FrameFailed && errors.Is(res.Err, port.ErrEstimatorUnavailable) {
		return res.Err
	}
	return nil
}

// Release closes the pose estimator. Calling it twice returns ErrReleased.
func (a *Analyzer) Release() error {
	if a.released {
		return ErrReleased
	}
	a.released = true
	return a.pose.Close()
}
