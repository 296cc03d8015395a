package report

import "github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"

// TimeSeries holds the per-frame metrics of the frames where a body was found.
type TimeSeries struct {
	Frames    []int
	LeftArm   []float64
	RightArm  []float64
	LeftLeg   []float64
	RightLeg  []float64
	Stability []float64
}

type NamedSeries struct {
	Name   string
	Values []float64
}

func Series(frames []movement.FrameAnalysis) TimeSeries {
	var ts TimeSeries
	for _, f := range frames {
		if f.BodyPartsDetected == 0 {
			continue
		}
		ts.Frames = append(ts.Frames, f.Frame)
		ts.LeftArm = append(ts.LeftArm, f.LeftArmAngle)
		ts.RightArm = append(ts.RightArm, f.RightArmAngle)
		ts.LeftLeg = append(ts.LeftLeg, f.LeftLegAngle)
		ts.RightLeg = append(ts.RightLeg, f.RightLegAngle)
		ts.Stability = append(ts.Stability, f.PostureStability)
	}
	return ts
}

func (ts TimeSeries) Angles() []NamedSeries {
	return []NamedSeries{
		{Name: "Left Arm", Values: ts.LeftArm},
		{Name: "Right Arm", Values: ts.RightArm},
		{Name: "Left Leg", Values: ts.LeftLeg},
		{Name: "Right Leg", Values: ts.RightLeg},
	}
}
