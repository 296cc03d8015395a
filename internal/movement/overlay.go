package movement

import "fmt"

// OverlayLines renders the six metric lines burned onto an analysed frame.
func OverlayLines(a FrameAnalysis) []string {
	return []string{
		fmt.Sprintf("Frame: %d", a.Frame),
		fmt.Sprintf("Left Arm: %.1f°", a.LeftArmAngle),
		fmt.Sprintf("Right Arm: %.1f°", a.RightArmAngle),
		fmt.Sprintf("Left Leg: %.1f°", a.LeftLegAngle),
		fmt.Sprintf("Right Leg: %.1f°", a.RightLegAngle),
		fmt.Sprintf("Stability: %.2f", a.PostureStability),
	}
}
