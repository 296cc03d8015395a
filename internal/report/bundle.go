package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
)

var csvHeader = []string{
	"frame", "body_parts_detected",
	"left_arm_angle", "right_arm_angle", "left_leg_angle", "right_leg_angle",
	"posture_stability",
}

// FramesCSV renders one row per frame, empty records included.
func FramesCSV(frames []movement.FrameAnalysis) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, f := range frames {
		row := []string{
			strconv.Itoa(f.Frame),
			strconv.Itoa(f.BodyPartsDetected),
			formatFloat(f.LeftArmAngle),
			formatFloat(f.RightArmAngle),
			formatFloat(f.LeftLegAngle),
			formatFloat(f.RightLegAngle),
			formatFloat(f.PostureStability),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write frames csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// BundleEntries lists the files of a report bundle. chartPath is skipped when
// empty.
func BundleEntries(videoPath, chartPath string, summary movement.Summary, frames []movement.FrameAnalysis) ([]port.BundleEntry, error) {
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	framesCSV, err := FramesCSV(frames)
	if err != nil {
		return nil, err
	}

	entries := []port.BundleEntry{
		{Name: "analyzed.mp4", Path: videoPath},
		{Name: "summary.json", Data: summaryJSON},
		{Name: "frames.csv", Data: framesCSV},
	}
	if chartPath != "" {
		entries = append(entries, port.BundleEntry{Name: "timeline.png", Path: chartPath})
	}
	return entries, nil
}
