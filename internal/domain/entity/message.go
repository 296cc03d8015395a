package entity

import (
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/google/uuid"
)

// AnalysisRequestMessage is the inbound message from the analysis.requested queue.
type AnalysisRequestMessage struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	UserID     string    `json:"user_id"`
	VideoKey   string    `json:"video_key"`
	FileSize   int64     `json:"file_size"`
	UserEmail  string    `json:"user_email"`
}

// AnalysisStatusMessage is the outbound message published to the analysis.status queue.
type AnalysisStatusMessage struct {
	AnalysisID   uuid.UUID         `json:"analysis_id"`
	UserID       string            `json:"user_id,omitempty"`
	Source       Source            `json:"source"`
	Status       AnalysisStatus    `json:"status"`
	VideoKey     string            `json:"video_key,omitempty"`
	OutputKey    string            `json:"output_key,omitempty"`
	Summary      *movement.Summary `json:"analysis,omitempty"`
	Duration     float64           `json:"duration_seconds,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

func NewStatusMessage(a *Analysis, videoKey string) AnalysisStatusMessage {
	return AnalysisStatusMessage{
		AnalysisID:   a.ID,
		UserID:       a.UserID,
		Source:       a.Source,
		Status:       a.Status,
		VideoKey:     videoKey,
		OutputKey:    a.OutputKey,
		Summary:      a.Summary,
		Duration:     a.VideoDuration,
		ErrorMessage: a.ErrorMessage,
	}
}
