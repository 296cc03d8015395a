package studio

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memHistory struct {
	items []*entity.Analysis
}

func (h *memHistory) Create(_ context.Context, a *entity.Analysis) error {
	h.items = append(h.items, a)
	return nil
}

func (h *memHistory) Update(context.Context, *entity.Analysis) error { return nil }

func (h *memHistory) FindByID(_ context.Context, id uuid.UUID) (*entity.Analysis, error) {
	for _, a := range h.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, port.ErrAnalysisNotFound
}

func (h *memHistory) ListRecent(_ context.Context, limit int) ([]*entity.Analysis, error) {
	out := make([]*entity.Analysis, 0, limit)
	for i := len(h.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.items[i])
	}
	return out, nil
}

// recordingAnalysis writes an output file and stores the analysis in the
// history the way the real use case does.
type recordingAnalysis struct {
	history *memHistory
	frames  []movement.FrameAnalysis
	total   int
	err     error
	inputs  []string
}

func (r *recordingAnalysis) Execute(ctx context.Context, req usecase.AnalyzeRequest) (*entity.Analysis, error) {
	r.inputs = append(r.inputs, req.InputPath)
	a := entity.NewAnalysis(req.ID, req.Source, req.InputName, req.InputPath, req.OutputPath)
	if r.err != nil {
		a.MarkFailed(r.err.Error())
		return a, r.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("annotated"), 0o644); err != nil {
		return a, err
	}
	a.MarkCompleted(movement.Summarize(r.total, r.frames), r.frames)
	if r.history != nil {
		_ = r.history.Create(ctx, a)
	}
	return a, nil
}

func dynamicFrames() []movement.FrameAnalysis {
	return []movement.FrameAnalysis{
		{Frame: 0, BodyPartsDetected: 33, LeftArmAngle: 120, RightArmAngle: 110, LeftLegAngle: 170, RightLegAngle: 170, PostureStability: 0.9},
		{Frame: 1, BodyPartsDetected: 33, LeftArmAngle: 130, RightArmAngle: 100, LeftLegAngle: 160, RightLegAngle: 165, PostureStability: 0.8},
	}
}

func newStudio(t *testing.T, an VideoAnalysis, history History) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewServer(Config{UploadDir: filepath.Join(dir, "uploads"), TempDir: filepath.Join(dir, "tmp")}, an, history, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func uploadForm(t *testing.T, filename string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("raw video"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndexShowsWelcome(t *testing.T) {
	s, _ := newStudio(t, &recordingAnalysis{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome to the Dance Movement Analyzer!")
	assert.Contains(t, body, `accept=".mp4,.mov,.avi,.mkv"`)
	assert.NotContains(t, body, "Recent Analyses")
}

func TestAnalyzeRendersMetricsAndInsights(t *testing.T) {
	history := &memHistory{}
	an := &recordingAnalysis{history: history, frames: dynamicFrames(), total: 2}
	s, dir := newStudio(t, an, history)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadForm(t, "salsa.mov"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Analysis completed successfully!")
	assert.Contains(t, body, `src="/videos/analyzed_salsa.mov"`)
	assert.Contains(t, body, `href="/download/analyzed_salsa.mov"`)
	assert.Contains(t, body, "125.0°")
	assert.Contains(t, body, "0.85")
	assert.Contains(t, body, "Excellent pose detection throughout the video!")
	assert.Contains(t, body, "Dynamic movement detected with wide range of motion")
	assert.Contains(t, body, ">Good<")
	assert.Contains(t, body, "/charts/"+history.items[0].ID.String())
	assert.Contains(t, body, "Recent Analyses")

	assert.FileExists(t, filepath.Join(dir, "uploads", "analyzed_salsa.mov"))
	require.Len(t, an.inputs, 1)
	assert.NoFileExists(t, an.inputs[0], "temporary upload removed")
}

func TestAnalyzeNoDetectionShowsTips(t *testing.T) {
	s, _ := newStudio(t, &recordingAnalysis{total: 12}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadForm(t, "empty.mp4"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "No human poses detected in the video.")
	assert.Contains(t, body, "Tips for better detection:")
	assert.NotContains(t, body, "Movement Metrics")
}

func TestAnalyzeRejectsExtension(t *testing.T) {
	an := &recordingAnalysis{}
	s, _ := newStudio(t, an, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadForm(t, "notes.txt"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported file type")
	assert.Empty(t, an.inputs)
}

func TestAnalyzeFailureShowsErrorPanel(t *testing.T) {
	s, _ := newStudio(t, &recordingAnalysis{err: errors.New("cannot open video file")}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadForm(t, "broken.avi"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Error processing video")
	assert.Contains(t, body, "Error details: cannot open video file")
	assert.Contains(t, body, "Try a different video format or check the video file integrity.")
}

func TestChartEndpoint(t *testing.T) {
	history := &memHistory{}
	a := entity.NewAnalysis(uuid.New(), entity.SourceStudio, "salsa.mov", "", "")
	a.MarkCompleted(movement.Summarize(2, dynamicFrames()), dynamicFrames())
	require.NoError(t, history.Create(context.Background(), a))
	s, _ := newStudio(t, &recordingAnalysis{}, history)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/"+a.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 of 2 frames with a detected pose")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideoServedInline(t *testing.T) {
	s, dir := newStudio(t, &recordingAnalysis{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "analyzed_a.mp4"), []byte("0123456789"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/videos/analyzed_a.mp4", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())
	assert.Equal(t, "inline", rec.Header().Get("Content-Disposition"))
}

func TestAllowedFileAndOutputName(t *testing.T) {
	for _, name := range []string{"a.mp4", "B.MOV", "c.avi", "d.mkv"} {
		assert.True(t, AllowedFile(name), name)
	}
	for _, name := range []string{"a.gif", "mp4", "a.mp4.exe"} {
		assert.False(t, AllowedFile(name), name)
	}
	assert.Equal(t, "analyzed_clip.mp4", OutputName("../../clip.mp4"))
}
