package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/analyzer"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/report"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// VideoAnalyzer is the part of analyzer.Analyzer the use case drives.
type VideoAnalyzer interface {
	ProcessVideo(ctx context.Context, inputPath, outputPath string) (*analyzer.Result, error)
	Release() error
}

// AnalyzerFactory builds a fresh analyzer for every request.
type AnalyzerFactory func() (VideoAnalyzer, error)

// NewAnalyzerFactory opens an analyzer.Analyzer per call.
func NewAnalyzerFactory(pose port.PoseEstimatorFactory, codec port.VideoCodec, logger *zap.Logger) AnalyzerFactory {
	return func() (VideoAnalyzer, error) {
		an, err := analyzer.Open(pose, codec, logger)
		if err != nil {
			return nil, err
		}
		return an, nil
	}
}

// AnalyzeRequest describes one analysis. OutputPath is written by the analyzer;
// ArtifactDir receives the chart and the bundle and defaults to the output
// directory.
type AnalyzeRequest struct {
	ID          uuid.UUID
	Source      entity.Source
	UserID      string
	InputName   string
	InputPath   string
	OutputPath  string
	ArtifactDir string
}

// Collaborators other than the analyzer factory are optional; nil disables the
// corresponding step.
type AnalyzeVideoDeps struct {
	Analyzers  AnalyzerFactory
	Repo       port.AnalysisRepository
	Publisher  port.StatusPublisher
	Prober     port.VideoProber
	Transcoder port.Transcoder
	Charts     port.ChartRenderer
	Zipper     port.Zipper
}

type AnalyzeVideoUseCase struct {
	analyzers  AnalyzerFactory
	repo       port.AnalysisRepository
	publisher  port.StatusPublisher
	prober     port.VideoProber
	transcoder port.Transcoder
	charts     port.ChartRenderer
	zipper     port.Zipper
	logger     *zap.Logger
}

func NewAnalyzeVideoUseCase(deps AnalyzeVideoDeps, logger *zap.Logger) *AnalyzeVideoUseCase {
	return &AnalyzeVideoUseCase{
		analyzers:  deps.Analyzers,
		repo:       deps.Repo,
		publisher:  deps.Publisher,
		prober:     deps.Prober,
		transcoder: deps.Transcoder,
		charts:     deps.Charts,
		zipper:     deps.Zipper,
		logger:     logger,
	}
}

// Execute runs the analyzer over the request's input and produces the
// optional artifacts. The returned analysis is COMPLETED even when no body was
// detected; video level failures return the analyzer error wrapped, with the
// analysis marked FAILED.
func (uc *AnalyzeVideoUseCase) Execute(ctx context.Context, req AnalyzeRequest) (*entity.Analysis, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnalyzeVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	a := entity.NewAnalysis(req.ID, req.Source, req.InputName, req.InputPath, req.OutputPath)
	a.UserID = req.UserID

	span.SetAttributes(
		attribute.String("analysis.id", a.ID.String()),
		attribute.String("analysis.source", string(a.Source)),
	)
	log := uc.logger.With(zap.String("analysis_id", a.ID.String()), zap.String("input", req.InputName))

	uc.save(ctx, a, true, log)
	a.MarkProcessing()
	uc.save(ctx, a, false, log)

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	res, err := uc.analyze(ctx, req, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("video analysis failed", zap.Error(err))
		a.MarkFailed(err.Error())
		uc.finish(ctx, a, log)
		return a, err
	}

	uc.enrich(ctx, a, req, res, log)

	a.MarkCompleted(res.Summary, res.Frames)
	uc.finish(ctx, a, log)
	metrics.AnalysisStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	log.Info("analysis completed",
		zap.String("summary_status", string(res.Summary.Status)),
		zap.Int("total_frames", res.Summary.TotalFrames),
		zap.Int("frames_with_detection", res.Summary.FramesWithDetection),
	)
	return a, nil
}

func (uc *AnalyzeVideoUseCase) analyze(ctx context.Context, req AnalyzeRequest, log *zap.Logger) (*analyzer.Result, error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "process_video")
	defer span.End()
	start := time.Now()

	an, err := uc.analyzers()
	if err != nil {
		return nil, fmt.Errorf("initialize analyzer: %w", err)
	}
	defer func() {
		if err := an.Release(); err != nil {
			log.Warn("release analyzer", zap.Error(err))
		}
	}()

	res, err := an.ProcessVideo(ctx, req.InputPath, req.OutputPath)
	if err != nil {
		return nil, err
	}
	metrics.AnalysisStageDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	return res, nil
}

// enrich runs the optional post-processing steps. None of them fails the
// analysis.
func (uc *AnalyzeVideoUseCase) enrich(ctx context.Context, a *entity.Analysis, req AnalyzeRequest, res *analyzer.Result, log *zap.Logger) {
	tracer := otel.Tracer("usecase")
	artifactDir := req.ArtifactDir
	if artifactDir == "" {
		artifactDir = filepath.Dir(req.OutputPath)
	}

	if uc.prober != nil {
		ctx2, sp := tracer.Start(ctx, "probe_video")
		probe, err := uc.prober.Probe(ctx2, req.InputPath)
		sp.End()
		if err != nil {
			log.Warn("probe video duration", zap.Error(err))
		} else {
			a.VideoDuration = probe.Duration
		}
	}

	if uc.transcoder != nil {
		start := time.Now()
		ctx2, sp := tracer.Start(ctx, "transcode_h264")
		if err := uc.transcode(ctx2, req.OutputPath); err != nil {
			log.Warn("h264 transcode failed, keeping mp4v output", zap.Error(err))
		} else {
			metrics.AnalysisStageDuration.WithLabelValues("transcode").Observe(time.Since(start).Seconds())
		}
		sp.End()
	}

	if uc.charts != nil && res.Summary.Detected() {
		chartPath := filepath.Join(artifactDir, a.ID.String()+"_timeline.png")
		_, sp := tracer.Start(ctx, "render_chart")
		err := uc.charts.RenderTimeline(res.Frames, req.InputName, chartPath)
		sp.End()
		switch {
		case err == nil:
			a.ChartPath = chartPath
		case errors.Is(err, report.ErrNoFrames):
		default:
			log.Warn("render timeline chart", zap.Error(err))
		}
	}

	if uc.zipper != nil {
		start := time.Now()
		ctx2, sp := tracer.Start(ctx, "create_bundle")
		bundlePath := filepath.Join(artifactDir, a.ID.String()+"_bundle.zip")
		entries, err := report.BundleEntries(req.OutputPath, a.ChartPath, res.Summary, res.Frames)
		if err == nil {
			err = uc.zipper.CreateZip(ctx2, entries, bundlePath)
		}
		sp.End()
		if err != nil {
			log.Warn("create report bundle", zap.Error(err))
		} else {
			a.BundlePath = bundlePath
			metrics.AnalysisStageDuration.WithLabelValues("bundle").Observe(time.Since(start).Seconds())
		}
	}
}

// transcode re-encodes outputPath in place.
func (uc *AnalyzeVideoUseCase) transcode(ctx context.Context, outputPath string) error {
	tmp := outputPath + ".h264.mp4"
	if err := uc.transcoder.TranscodeH264(ctx, outputPath, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace output: %w", err)
	}
	return nil
}

func (uc *AnalyzeVideoUseCase) save(ctx context.Context, a *entity.Analysis, create bool, log *zap.Logger) {
	if uc.repo == nil {
		return
	}
	var err error
	if create {
		err = uc.repo.Create(ctx, a)
	} else {
		err = uc.repo.Update(ctx, a)
	}
	if err != nil {
		log.Warn("persist analysis", zap.String("status", string(a.Status)), zap.Error(err))
	}
}

func (uc *AnalyzeVideoUseCase) finish(ctx context.Context, a *entity.Analysis, log *zap.Logger) {
	uc.save(ctx, a, false, log)
	metrics.AnalysesTotal.WithLabelValues(string(a.Source), string(a.Status)).Inc()

	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishStatus(ctx, entity.NewStatusMessage(a, a.InputName)); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
