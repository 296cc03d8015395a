package movement

// FrameAnalysis holds the metrics derived from one detected pose.
type FrameAnalysis struct {
	Frame             int     `json:"frame"`
	BodyPartsDetected int     `json:"body_parts_detected"`
	LeftArmAngle      float64 `json:"left_arm_angle"`
	RightArmAngle     float64 `json:"right_arm_angle"`
	LeftLegAngle      float64 `json:"left_leg_angle"`
	RightLegAngle     float64 `json:"right_leg_angle"`
	PostureStability  float64 `json:"posture_stability"`
}

// IsEmpty reports whether the record carries no metrics, which is what
// AnalyzeMovement returns for a frame without keypoints.
func (a FrameAnalysis) IsEmpty() bool {
	return a == FrameAnalysis{}
}

// AnalyzeMovement derives the joint angles and stability for one frame. The
// frame index is left for the caller to set.
func AnalyzeMovement(kps Keypoints) FrameAnalysis {
	if len(kps) == 0 {
		return FrameAnalysis{}
	}
	return FrameAnalysis{
		BodyPartsDetected: len(kps),
		LeftArmAngle:      ArmAngle(kps, Left),
		RightArmAngle:     ArmAngle(kps, Right),
		LeftLegAngle:      LegAngle(kps, Left),
		RightLegAngle:     LegAngle(kps, Right),
		PostureStability:  PostureStability(kps),
	}
}
