package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/analyzer"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type jobFixture struct {
	uc       *ProcessJobUseCase
	an       *fakeAnalyzer
	repo     *memRepo
	storage  *dirStorage
	pub      *recordingPublisher
	dlq      *recordingDLQ
	notifier *recordingNotifier
	tempDir  string
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	f := &jobFixture{
		an:       &fakeAnalyzer{frames: detectedFrames(), total: 4},
		repo:     newMemRepo(),
		storage:  newDirStorage(),
		pub:      &recordingPublisher{},
		dlq:      &recordingDLQ{},
		notifier: &recordingNotifier{},
		tempDir:  t.TempDir(),
	}

	src := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0o644))
	f.storage.sources["u1/clip.mp4"] = src

	analyze := NewAnalyzeVideoUseCase(AnalyzeVideoDeps{
		Analyzers: factoryFor(f.an),
		Repo:      f.repo,
		Charts:    fileCharts{},
		Zipper:    fileZipper{},
	}, zap.NewNop())
	f.uc = NewProcessJobUseCase(analyze, f.repo, f.storage, f.pub, f.dlq, f.notifier, zap.NewNop(),
		ProcessJobConfig{TempDir: f.tempDir})
	return f
}

func requestBody(t *testing.T, msg entity.AnalysisRequestMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestProcessJobSuccess(t *testing.T) {
	f := newJobFixture(t)
	id := uuid.New()

	err := f.uc.Execute(context.Background(), requestBody(t, entity.AnalysisRequestMessage{
		AnalysisID: id, UserID: "u1", VideoKey: "u1/clip.mp4", UserEmail: "dancer@example.com",
	}))
	require.NoError(t, err)

	prefix := "u1/" + id.String()
	assert.Equal(t, []byte("mp4v-video"), f.storage.uploads[prefix+"/analyzed.mp4"])
	assert.Equal(t, "video/mp4", f.storage.types[prefix+"/analyzed.mp4"])
	assert.Contains(t, f.storage.uploads, prefix+"/bundle.zip")
	assert.Contains(t, f.storage.uploads, prefix+"/timeline.png")

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusCompleted, stored.Status)
	assert.Equal(t, prefix+"/analyzed.mp4", stored.OutputKey)
	assert.Equal(t, entity.SourceWorker, stored.Source)

	require.Len(t, f.pub.msgs, 1)
	msg := f.pub.msgs[0]
	assert.Equal(t, entity.AnalysisStatusCompleted, msg.Status)
	assert.Equal(t, prefix+"/analyzed.mp4", msg.OutputKey)
	assert.Equal(t, "u1/clip.mp4", msg.VideoKey)
	assert.Equal(t, 2, msg.Summary.FramesWithDetection)

	assert.Empty(t, f.dlq.bodies)
	assert.Empty(t, f.notifier.to)
	assert.NoDirExists(t, filepath.Join(f.tempDir, id.String()), "work dir removed")
}

func TestProcessJobMalformedMessageGoesToDLQ(t *testing.T) {
	f := newJobFixture(t)

	err := f.uc.Execute(context.Background(), []byte(`{invalid json`))
	require.NoError(t, err)

	require.Len(t, f.dlq.bodies, 1)
	assert.Equal(t, `{invalid json`, string(f.dlq.bodies[0]))
	assert.Contains(t, f.dlq.reasons[0], "unmarshal_error")
	assert.Empty(t, f.pub.msgs)
}

func TestProcessJobMissingVideoKey(t *testing.T) {
	f := newJobFixture(t)

	require.NoError(t, f.uc.Execute(context.Background(), []byte(`{"user_id":"u1"}`)))
	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "video_key")
}

func TestProcessJobDownloadFailure(t *testing.T) {
	f := newJobFixture(t)
	id := uuid.New()

	err := f.uc.Execute(context.Background(), requestBody(t, entity.AnalysisRequestMessage{
		AnalysisID: id, UserID: "u1", VideoKey: "u1/missing.mp4", UserEmail: "dancer@example.com",
	}))
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "download_video")

	require.Len(t, f.dlq.bodies, 1)
	assert.Equal(t, []string{"dancer@example.com"}, f.notifier.to)
	require.Len(t, f.pub.msgs, 1)
	assert.Equal(t, entity.AnalysisStatusFailed, f.pub.msgs[0].Status)
	assert.Zero(t, f.an.released, "analyzer never opened")
}

func TestProcessJobAnalysisFailure(t *testing.T) {
	f := newJobFixture(t)
	f.an.err = analyzer.ErrOpenInput
	id := uuid.New()

	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, entity.AnalysisRequestMessage{
		AnalysisID: id, UserID: "u1", VideoKey: "u1/clip.mp4", UserEmail: "dancer@example.com",
	})))

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.Status)
	require.Len(t, f.dlq.reasons, 1)
	assert.Contains(t, f.dlq.reasons[0], "analyze_video")
	assert.Len(t, f.notifier.to, 1)
	assert.Empty(t, f.storage.uploads)
}

func TestProcessJobUploadFailure(t *testing.T) {
	f := newJobFixture(t)
	f.storage.failPut = true
	id := uuid.New()

	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, entity.AnalysisRequestMessage{
		AnalysisID: id, UserID: "u1", VideoKey: "u1/clip.mp4",
	})))

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "upload_results")
	assert.Len(t, f.dlq.bodies, 1)
	assert.Empty(t, f.notifier.to, "no email without an address")
}

func TestProcessJobUploadFailureCountsAnalysisOnce(t *testing.T) {
	f := newJobFixture(t)
	f.storage.failPut = true

	counted := func() float64 {
		var n float64
		for _, status := range []entity.AnalysisStatus{entity.AnalysisStatusCompleted, entity.AnalysisStatusFailed} {
			n += testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues(string(entity.SourceWorker), string(status)))
		}
		return n
	}
	before := counted()

	require.NoError(t, f.uc.Execute(context.Background(), requestBody(t, entity.AnalysisRequestMessage{
		AnalysisID: uuid.New(), UserID: "u1", VideoKey: "u1/clip.mp4",
	})))

	assert.Equal(t, before+1, counted())
}

func TestProcessJobReportsDLQFailure(t *testing.T) {
	f := newJobFixture(t)
	f.dlq.err = errors.New("channel closed")

	err := f.uc.Execute(context.Background(), []byte(`nope`))
	assert.ErrorContains(t, err, "channel closed")
}

func TestResultKeyPrefix(t *testing.T) {
	id := uuid.MustParse("6f1c3c1e-2b7a-4a8e-9d5b-0c4f1e2d3a4b")
	assert.Equal(t, "u1/"+id.String(), ResultKeyPrefix("u1", id))
	assert.Equal(t, "anonymous/"+id.String(), ResultKeyPrefix("", id))
}
