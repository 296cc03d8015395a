package movement

// DetectionLevel grades how consistently a pose was found across a video.
type DetectionLevel string

const (
	DetectionExcellent DetectionLevel = "excellent"
	DetectionGood      DetectionLevel = "good"
	DetectionLow       DetectionLevel = "low"
)

const (
	excellentDetectionRate = 0.8
	goodDetectionRate      = 0.5
	goodStability          = 0.7
	dynamicAngle           = 90.0
)

// Insights are the qualitative remarks shown next to a summary.
type Insights struct {
	DetectionRate    float64
	DetectionLevel   DetectionLevel
	DetectionMessage string
	StabilityLabel   string
	Dynamic          bool
	MovementQuality  string
}

// Assess derives the insights of a summary. It returns false for a summary
// without detections.
func Assess(s Summary) (Insights, bool) {
	if !s.Detected() || s.FramesWithDetection == 0 {
		return Insights{}, false
	}

	in := Insights{DetectionRate: s.DetectionRate()}
	switch {
	case in.DetectionRate > excellentDetectionRate:
		in.DetectionLevel = DetectionExcellent
		in.DetectionMessage = "Excellent pose detection throughout the video!"
	case in.DetectionRate > goodDetectionRate:
		in.DetectionLevel = DetectionGood
		in.DetectionMessage = "Good pose detection. Some frames may have missed detection."
	default:
		in.DetectionLevel = DetectionLow
		in.DetectionMessage = "Low pose detection rate. Try a video with better visibility."
	}

	if s.Averages.Stability > goodStability {
		in.StabilityLabel = "Good"
	} else {
		in.StabilityLabel = "Needs Improvement"
	}

	arms := (s.Averages.LeftArmAngle + s.Averages.RightArmAngle) / 2
	legs := (s.Averages.LeftLegAngle + s.Averages.RightLegAngle) / 2
	if arms > dynamicAngle || legs > dynamicAngle {
		in.Dynamic = true
		in.MovementQuality = "Dynamic movement detected with wide range of motion"
	} else {
		in.MovementQuality = "Controlled movement with moderate range"
	}
	return in, true
}
