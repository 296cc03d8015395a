package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessJobUseCase handles one analysis.requested message: the source video
// is fetched from object storage, analyzed, and the results are uploaded back.
// Failures are dead-lettered and mailed to the user; nothing is retried.
type ProcessJobUseCase struct {
	analyze   *AnalyzeVideoUseCase
	repo      port.AnalysisRepository
	storage   port.VideoStorage
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
}

type ProcessJobConfig struct {
	TempDir string
}

func NewProcessJobUseCase(
	analyze *AnalyzeVideoUseCase,
	repo port.AnalysisRepository,
	storage port.VideoStorage,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessJobConfig,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		analyze:   analyze,
		repo:      repo,
		storage:   storage,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
	}
}

// Execute is a rabbitmq.MessageHandler. It returns an error only when the
// failure could not even be dead-lettered.
func (uc *ProcessJobUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessJobUseCase.Execute")
	defer span.End()

	var msg entity.AnalysisRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		return uc.deadLetter(ctx, rawMsg, "unmarshal_error: "+err.Error())
	}
	if msg.VideoKey == "" {
		uc.logger.Error("message without video key", zap.ByteString("body", rawMsg))
		return uc.deadLetter(ctx, rawMsg, "invalid_message: video_key is required")
	}
	if msg.AnalysisID == uuid.Nil {
		msg.AnalysisID = uuid.New()
	}

	span.SetAttributes(
		attribute.String("analysis.id", msg.AnalysisID.String()),
		attribute.String("analysis.video_key", msg.VideoKey),
	)
	log := uc.logger.With(zap.String("analysis_id", msg.AnalysisID.String()), zap.String("video_key", msg.VideoKey))

	workDir := filepath.Join(uc.tempDir, msg.AnalysisID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return uc.fail(ctx, nil, msg, rawMsg, "create_workdir: "+err.Error(), log)
	}
	defer os.RemoveAll(workDir)

	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	inputPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, inputPath)
	spanDl.End()
	if err != nil {
		log.Error("failed to download video", zap.Error(err))
		return uc.fail(ctx, nil, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	metrics.AnalysisStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	a, err := uc.analyze.Execute(ctx, AnalyzeRequest{
		ID:          msg.AnalysisID,
		Source:      entity.SourceWorker,
		UserID:      msg.UserID,
		InputName:   msg.VideoKey,
		InputPath:   inputPath,
		OutputPath:  filepath.Join(workDir, "analyzed.mp4"),
		ArtifactDir: workDir,
	})
	if err != nil {
		return uc.fail(ctx, a, msg, rawMsg, "analyze_video: "+err.Error(), log)
	}

	upStart := time.Now()
	ctx3, spanUp := tracer.Start(ctx, "upload_results")
	err = uc.uploadResults(ctx3, a, msg)
	spanUp.End()
	if err != nil {
		log.Error("result upload failed", zap.Error(err))
		return uc.fail(ctx, a, msg, rawMsg, "upload_results: "+err.Error(), log)
	}
	metrics.AnalysisStageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	if uc.repo != nil {
		if err := uc.repo.Update(ctx, a); err != nil {
			log.Error("failed to store output key", zap.Error(err))
		}
	}
	uc.publishStatus(ctx, a, msg.VideoKey, log)

	log.Info("job completed successfully",
		zap.String("output_key", a.OutputKey),
		zap.Float64("duration_secs", a.VideoDuration),
	)
	return nil
}

// ResultKeyPrefix is the object key prefix under which an analysis' results
// are stored.
func ResultKeyPrefix(userID string, id uuid.UUID) string {
	if userID == "" {
		userID = "anonymous"
	}
	return path.Join(userID, id.String())
}

func (uc *ProcessJobUseCase) uploadResults(ctx context.Context, a *entity.Analysis, msg entity.AnalysisRequestMessage) error {
	prefix := ResultKeyPrefix(msg.UserID, a.ID)

	videoKey := path.Join(prefix, "analyzed.mp4")
	if err := uc.upload(ctx, a.OutputPath, videoKey, "video/mp4"); err != nil {
		return err
	}
	a.OutputKey = videoKey

	if a.BundlePath != "" {
		if err := uc.upload(ctx, a.BundlePath, path.Join(prefix, "bundle.zip"), "application/zip"); err != nil {
			return err
		}
	}
	if a.ChartPath != "" {
		if err := uc.upload(ctx, a.ChartPath, path.Join(prefix, "timeline.png"), "image/png"); err != nil {
			return err
		}
	}
	return nil
}

func (uc *ProcessJobUseCase) upload(ctx context.Context, localPath, key, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(localPath), err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(localPath), err)
	}
	return uc.storage.UploadResult(ctx, key, f, st.Size(), contentType)
}

// fail records the failure, dead-letters the original message and notifies
// the user. a is nil when the analysis never started.
func (uc *ProcessJobUseCase) fail(
	ctx context.Context,
	a *entity.Analysis,
	msg entity.AnalysisRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	if a == nil {
		a = entity.NewAnalysis(msg.AnalysisID, entity.SourceWorker, msg.VideoKey, "", "")
		a.UserID = msg.UserID
		a.MarkFailed(errMsg)
		if uc.repo != nil {
			if err := uc.repo.Create(ctx, a); err != nil {
				log.Warn("persist failed analysis", zap.Error(err))
			}
		}
		metrics.AnalysesTotal.WithLabelValues(string(a.Source), string(a.Status)).Inc()
	} else if a.Status != entity.AnalysisStatusFailed {
		// Already counted as completed; the dlq counter records the upload loss.
		a.MarkFailed(errMsg)
		if uc.repo != nil {
			if err := uc.repo.Update(ctx, a); err != nil {
				log.Warn("persist failed analysis", zap.Error(err))
			}
		}
	}

	dlqErr := uc.deadLetter(ctx, rawMsg, errMsg)
	uc.publishStatus(ctx, a, msg.VideoKey, log)

	if msg.UserEmail != "" && uc.notifier != nil {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, a.ID.String(), msg.VideoKey, errMsg)
	}
	return dlqErr
}

func (uc *ProcessJobUseCase) deadLetter(ctx context.Context, rawMsg []byte, reason string) error {
	metrics.AnalysesTotal.WithLabelValues(string(entity.SourceWorker), "dlq").Inc()
	if err := uc.dlq.PublishToDLQ(ctx, rawMsg, reason); err != nil {
		uc.logger.Error("failed to publish to DLQ", zap.Error(err))
		return errors.Join(errors.New(reason), err)
	}
	return nil
}

func (uc *ProcessJobUseCase) publishStatus(ctx context.Context, a *entity.Analysis, videoKey string, log *zap.Logger) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishStatus(ctx, entity.NewStatusMessage(a, videoKey)); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
