package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedAnalysis() *entity.Analysis {
	frames := []movement.FrameAnalysis{
		{Frame: 0, BodyPartsDetected: 33, LeftArmAngle: 120, RightArmAngle: 100, LeftLegAngle: 170, RightLegAngle: 175, PostureStability: 0.9},
		{Frame: 1, BodyPartsDetected: 33, LeftArmAngle: 110, RightArmAngle: 90, LeftLegAngle: 160, RightLegAngle: 165, PostureStability: 0.8},
	}
	summary := movement.Summarize(2, frames)
	a := entity.NewAnalysis(uuid.New(), entity.SourceCLI, "solo.mp4", "in/solo.mp4", "in/analyzed_solo.mp4")
	a.Summary = &summary
	a.Frames = frames
	a.Status = entity.AnalysisStatusCompleted
	return a
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("videos", "analyzed_solo.mp4"), defaultOutputPath(filepath.Join("videos", "solo.mp4")))
	assert.Equal(t, "analyzed_solo.mp4", defaultOutputPath("solo.mp4"))
}

func TestPrintReportDetected(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, completedAnalysis())

	out := buf.String()
	assert.Contains(t, out, "in/analyzed_solo.mp4")
	assert.Contains(t, out, "Frames with pose")
	assert.Contains(t, out, "115.0°")
	assert.Contains(t, out, "Excellent pose detection")
	assert.Contains(t, out, "Stability: Good")
}

func TestPrintReportNoDetection(t *testing.T) {
	a := completedAnalysis()
	summary := movement.Summarize(40, nil)
	a.Summary = &summary

	var buf bytes.Buffer
	printReport(&buf, a)
	assert.Contains(t, buf.String(), movement.NoMovementDetected)
	assert.NotContains(t, buf.String(), "Stability")
}

func TestPrintJSON(t *testing.T) {
	a := completedAnalysis()
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, a))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, a.ID.String(), got["id"])
	summary, ok := got["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, summary["frames_with_detection"])
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Contains(t, buf.String(), "no analyses recorded yet")

	buf.Reset()
	a := completedAnalysis()
	a.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failed := entity.NewAnalysis(uuid.New(), entity.SourceStudio, "broken.avi", "", "")
	failed.Status = entity.AnalysisStatusFailed
	printHistory(&buf, []*entity.Analysis{a, failed})

	out := buf.String()
	assert.Contains(t, out, "solo.mp4")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "broken.avi")
	assert.Contains(t, out, "failed")
}

func TestAnalyzeRequiresInput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"analyze"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
