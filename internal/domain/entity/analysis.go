package entity

import (
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "PENDING"
	AnalysisStatusProcessing AnalysisStatus = "PROCESSING"
	AnalysisStatusCompleted  AnalysisStatus = "COMPLETED"
	AnalysisStatusFailed     AnalysisStatus = "FAILED"
)

// Source names the front end that requested an analysis.
type Source string

const (
	SourceAPI    Source = "api"
	SourceStudio Source = "studio"
	SourceWorker Source = "worker"
	SourceCLI    Source = "cli"
)

type Analysis struct {
	ID            uuid.UUID
	UserID        string
	Source        Source
	InputName     string
	InputPath     string
	OutputPath    string
	OutputKey     string
	ChartPath     string
	BundlePath    string
	Status        AnalysisStatus
	Summary       *movement.Summary
	Frames        []movement.FrameAnalysis
	VideoDuration float64
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewAnalysis(id uuid.UUID, source Source, inputName, inputPath, outputPath string) *Analysis {
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	return &Analysis{
		ID:         id,
		Source:     source,
		InputName:  inputName,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Status:     AnalysisStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (a *Analysis) MarkProcessing() {
	a.Status = AnalysisStatusProcessing
	a.UpdatedAt = time.Now().UTC()
}

// MarkCompleted stores the result. A summary without detections still
// completes the analysis; the summary carries its own error marker.
func (a *Analysis) MarkCompleted(summary movement.Summary, frames []movement.FrameAnalysis) {
	now := time.Now().UTC()
	a.Status = AnalysisStatusCompleted
	a.Summary = &summary
	a.Frames = frames
	a.UpdatedAt = now
	a.CompletedAt = &now
}

func (a *Analysis) MarkFailed(errMsg string) {
	a.Status = AnalysisStatusFailed
	a.ErrorMessage = errMsg
	a.UpdatedAt = time.Now().UTC()
}

func (a *Analysis) Done() bool {
	return a.Status == AnalysisStatusCompleted || a.Status == AnalysisStatusFailed
}
