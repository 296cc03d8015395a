package analyzer

import (
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"gocv.io/x/gocv"
)

// FrameOutcome classifies what happened to one frame.
type FrameOutcome int

const (
	FrameNoPose FrameOutcome = iota
	FrameDetected
	FrameFailed
)

func (o FrameOutcome) String() string {
	switch o {
	case FrameDetected:
		return "detected"
	case FrameFailed:
		return "failed"
	default:
		return "no_pose"
	}
}

// FrameResult is the outcome of ProcessFrame. Frame is an annotated copy when
// a pose was detected and the caller's frame otherwise; Err is set only for
// FrameFailed and has already been logged.
type FrameResult struct {
	Frame     gocv.Mat
	Keypoints movement.Keypoints
	Outcome   FrameOutcome
	Err       error

	owned bool
}

// Close frees the annotated copy, if one was made.
func (r *FrameResult) Close() {
	if r.owned {
		_ = r.Frame.Close()
		r.owned = false
	}
}
