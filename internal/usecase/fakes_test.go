package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/analyzer"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/google/uuid"
)

type fakeAnalyzer struct {
	frames   []movement.FrameAnalysis
	total    int
	err      error
	released int
}

func (f *fakeAnalyzer) ProcessVideo(_ context.Context, in, out string) (*analyzer.Result, error) {
	if _, err := os.Stat(in); err != nil {
		return nil, analyzer.ErrInputNotFound
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(out, []byte("mp4v-video"), 0o644); err != nil {
		return nil, err
	}
	return &analyzer.Result{
		OutputPath: out,
		Summary:    movement.Summarize(f.total, f.frames),
		Frames:     f.frames,
	}, nil
}

func (f *fakeAnalyzer) Release() error {
	f.released++
	if f.released > 1 {
		return analyzer.ErrReleased
	}
	return nil
}

func factoryFor(a *fakeAnalyzer) AnalyzerFactory {
	return func() (VideoAnalyzer, error) { return a, nil }
}

type memRepo struct {
	mu      sync.Mutex
	items   map[uuid.UUID]entity.Analysis
	history []entity.AnalysisStatus
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[uuid.UUID]entity.Analysis{}}
}

func (r *memRepo) Create(_ context.Context, a *entity.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = *a
	r.history = append(r.history, a.Status)
	return nil
}

func (r *memRepo) Update(_ context.Context, a *entity.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; !ok {
		return port.ErrAnalysisNotFound
	}
	r.items[a.ID] = *a
	r.history = append(r.history, a.Status)
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, port.ErrAnalysisNotFound
	}
	return &a, nil
}

type recordingPublisher struct {
	msgs []entity.AnalysisStatusMessage
}

func (p *recordingPublisher) PublishStatus(_ context.Context, msg entity.AnalysisStatusMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

type recordingDLQ struct {
	bodies  [][]byte
	reasons []string
	err     error
}

func (d *recordingDLQ) PublishToDLQ(_ context.Context, body []byte, reason string) error {
	d.bodies = append(d.bodies, body)
	d.reasons = append(d.reasons, reason)
	return d.err
}

type recordingNotifier struct {
	to []string
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, email, _, _, _ string) error {
	n.to = append(n.to, email)
	return nil
}

// dirStorage serves downloads from a map of key to local file and records
// uploads in memory.
type dirStorage struct {
	sources map[string]string
	uploads map[string][]byte
	types   map[string]string
	failPut bool
}

func newDirStorage() *dirStorage {
	return &dirStorage{sources: map[string]string{}, uploads: map[string][]byte{}, types: map[string]string{}}
}

func (s *dirStorage) DownloadVideo(_ context.Context, key, dest string) error {
	src, ok := s.sources[key]
	if !ok {
		return errors.New("object not found")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func (s *dirStorage) UploadResult(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if s.failPut {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.uploads[key] = data
	s.types[key] = contentType
	return nil
}

type fakeProber struct{ duration float64 }

func (p fakeProber) Probe(context.Context, string) (*port.ProbeResult, error) {
	return &port.ProbeResult{Duration: p.duration, Codec: "h264"}, nil
}

type copyTranscoder struct{ err error }

func (t copyTranscoder) TranscodeH264(_ context.Context, in, out string) error {
	if t.err != nil {
		return t.err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte("h264:"), data...), 0o644)
}

type fileCharts struct{}

func (fileCharts) RenderTimeline(_ []movement.FrameAnalysis, _ string, out string) error {
	return os.WriteFile(out, []byte("png"), 0o644)
}

type fileZipper struct{}

func (fileZipper) CreateZip(_ context.Context, entries []port.BundleEntry, out string) error {
	var names []byte
	for _, e := range entries {
		names = append(names, e.Name+"\n"...)
	}
	return os.WriteFile(out, names, 0o644)
}

func detectedFrames() []movement.FrameAnalysis {
	return []movement.FrameAnalysis{
		{Frame: 0, BodyPartsDetected: 33, LeftArmAngle: 90, RightArmAngle: 90, LeftLegAngle: 180, RightLegAngle: 180, PostureStability: 1},
		{Frame: 2, BodyPartsDetected: 33, LeftArmAngle: 100, RightArmAngle: 80, LeftLegAngle: 170, RightLegAngle: 160, PostureStability: 0.8},
	}
}
