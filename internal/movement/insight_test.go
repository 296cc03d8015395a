package movement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func summaryWith(total, detected int, arm, leg, stability float64) Summary {
	return Summary{
		Status:              SummaryComplete,
		TotalFrames:         total,
		FramesWithDetection: detected,
		Averages: &Averages{
			LeftArmAngle:  arm,
			RightArmAngle: arm,
			LeftLegAngle:  leg,
			RightLegAngle: leg,
			Stability:     stability,
		},
	}
}

func TestAssessDetectionLevels(t *testing.T) {
	cases := []struct {
		detected int
		want     DetectionLevel
	}{
		{100, DetectionExcellent},
		{81, DetectionExcellent},
		{80, DetectionGood},
		{51, DetectionGood},
		{50, DetectionLow},
		{1, DetectionLow},
	}
	for _, c := range cases {
		in, ok := Assess(summaryWith(100, c.detected, 45, 45, 0.9))
		assert.True(t, ok)
		assert.Equal(t, c.want, in.DetectionLevel, "detected=%d", c.detected)
	}
}

func TestAssessStabilityAndMovement(t *testing.T) {
	in, _ := Assess(summaryWith(10, 10, 95, 20, 0.71))
	assert.Equal(t, "Good", in.StabilityLabel)
	assert.True(t, in.Dynamic)

	in, _ = Assess(summaryWith(10, 10, 40, 90, 0.7))
	assert.Equal(t, "Needs Improvement", in.StabilityLabel)
	assert.False(t, in.Dynamic)
	assert.Equal(t, "Controlled movement with moderate range", in.MovementQuality)
}

func TestAssessNoDetection(t *testing.T) {
	_, ok := Assess(Summarize(10, nil))
	assert.False(t, ok)
}
