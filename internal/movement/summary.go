package movement

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// NoMovementDetected is the error marker of a summary without any detected pose.
const NoMovementDetected = "No movement data detected"

type SummaryStatus string

const (
	SummaryComplete    SummaryStatus = "complete"
	SummaryNoDetection SummaryStatus = "no_detection"
)

// Averages are the unweighted means over the frames that had a detected pose.
type Averages struct {
	LeftArmAngle  float64 `json:"average_left_arm_angle"`
	RightArmAngle float64 `json:"average_right_arm_angle"`
	LeftLegAngle  float64 `json:"average_left_leg_angle"`
	RightLegAngle float64 `json:"average_right_leg_angle"`
	Stability     float64 `json:"average_stability"`
}

// Summary aggregates a whole video. A video with no detected pose still
// produces an output file, so callers check Status independently of the error
// returned by the processing call.
type Summary struct {
	Status              SummaryStatus
	TotalFrames         int
	FramesWithDetection int
	Averages            *Averages
	Error               string
}

// Summarize builds the summary of a video of totalFrames frames from the
// records of the frames that had a detection.
func Summarize(totalFrames int, frames []FrameAnalysis) Summary {
	if len(frames) == 0 {
		return Summary{
			Status:      SummaryNoDetection,
			TotalFrames: totalFrames,
			Error:       NoMovementDetected,
		}
	}

	n := len(frames)
	leftArm := make([]float64, n)
	rightArm := make([]float64, n)
	leftLeg := make([]float64, n)
	rightLeg := make([]float64, n)
	stability := make([]float64, n)
	for i, f := range frames {
		leftArm[i] = f.LeftArmAngle
		rightArm[i] = f.RightArmAngle
		leftLeg[i] = f.LeftLegAngle
		rightLeg[i] = f.RightLegAngle
		stability[i] = f.PostureStability
	}

	if totalFrames < n {
		totalFrames = n
	}

	return Summary{
		Status:              SummaryComplete,
		TotalFrames:         totalFrames,
		FramesWithDetection: n,
		Averages: &Averages{
			LeftArmAngle:  stat.Mean(leftArm, nil),
			RightArmAngle: stat.Mean(rightArm, nil),
			LeftLegAngle:  stat.Mean(leftLeg, nil),
			RightLegAngle: stat.Mean(rightLeg, nil),
			Stability:     stat.Mean(stability, nil),
		},
	}
}

// Detected reports whether the summary carries averaged metrics.
func (s Summary) Detected() bool {
	return s.Status == SummaryComplete && s.Averages != nil
}

// DetectionRate is frames-with-detection over total frames, in [0,1].
func (s Summary) DetectionRate() float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(s.FramesWithDetection) / float64(s.TotalFrames)
}

type completeJSON struct {
	TotalFrames         int `json:"total_frames"`
	FramesWithDetection int `json:"frames_with_detection"`
	Averages
}

type errorJSON struct {
	Error string `json:"error"`
}

type storedErrorJSON struct {
	Error       string `json:"error"`
	TotalFrames int    `json:"total_frames,omitempty"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	if !s.Detected() {
		msg := s.Error
		if msg == "" {
			msg = NoMovementDetected
		}
		return json.Marshal(errorJSON{Error: msg})
	}
	return json.Marshal(completeJSON{
		TotalFrames:         s.TotalFrames,
		FramesWithDetection: s.FramesWithDetection,
		Averages:            *s.Averages,
	})
}

// StoredJSON is the persisted form. It matches MarshalJSON except that a
// summary without detection keeps its frame count.
func (s Summary) StoredJSON() ([]byte, error) {
	if s.Detected() {
		return s.MarshalJSON()
	}
	msg := s.Error
	if msg == "" {
		msg = NoMovementDetected
	}
	return json.Marshal(storedErrorJSON{Error: msg, TotalFrames: s.TotalFrames})
}

// UnmarshalJSON reads both the response and the stored form.
func (s *Summary) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode summary: %w", err)
	}
	if _, ok := fields["error"]; ok {
		e := storedErrorJSON{Error: NoMovementDetected}
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode summary error: %w", err)
		}
		*s = Summary{Status: SummaryNoDetection, TotalFrames: e.TotalFrames, Error: e.Error}
		return nil
	}

	var c completeJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("decode summary: %w", err)
	}
	avg := c.Averages
	*s = Summary{
		Status:              SummaryComplete,
		TotalFrames:         c.TotalFrames,
		FramesWithDetection: c.FramesWithDetection,
		Averages:            &avg,
	}
	return nil
}
