package movement

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Side selects the left or right limb.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// joint is a shoulder-elbow-wrist or hip-knee-ankle chain; the angle is measured
// at the middle landmark.
type joint [3]int

var (
	armJoints = map[Side]joint{
		Left:  {LeftShoulder, LeftElbow, LeftWrist},
		Right: {RightShoulder, RightElbow, RightWrist},
	}
	legJoints = map[Side]joint{
		Left:  {LeftHip, LeftKnee, LeftAnkle},
		Right: {RightHip, RightKnee, RightAnkle},
	}
)

// Angle returns the interior angle at b, in degrees, between the segments b->a
// and b->c. Depth is ignored. Degenerate input yields 0.
func Angle(a, b, c Keypoint) float64 {
	v1 := r2.Sub(r2.Vec{X: a.X, Y: a.Y}, r2.Vec{X: b.X, Y: b.Y})
	v2 := r2.Sub(r2.Vec{X: c.X, Y: c.Y}, r2.Vec{X: b.X, Y: b.Y})

	n := r2.Norm(v1) * r2.Norm(v2)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}

	cos := r2.Dot(v1, v2) / n
	cos = math.Max(-1, math.Min(1, cos))
	deg := math.Acos(cos) * 180 / math.Pi
	if math.IsNaN(deg) {
		return 0
	}
	return deg
}

// ArmAngle is the elbow angle of the given side, 0 when a landmark is missing.
func ArmAngle(kps Keypoints, side Side) float64 {
	return jointAngle(kps, armJoints[side])
}

// LegAngle is the knee angle of the given side, 0 when a landmark is missing.
func LegAngle(kps Keypoints, side Side) float64 {
	return jointAngle(kps, legJoints[side])
}

func jointAngle(kps Keypoints, j joint) float64 {
	a, ok := kps[j[0]]
	if !ok {
		return 0
	}
	b, ok := kps[j[1]]
	if !ok {
		return 0
	}
	c, ok := kps[j[2]]
	if !ok {
		return 0
	}
	return Angle(a, b, c)
}

// PostureStability scores the horizontal alignment of the shoulder centre over
// the hip centre: 1 when aligned, falling linearly to 0 at an offset of 0.1
// normalized units. Missing landmarks score 0.
func PostureStability(kps Keypoints) float64 {
	ls, ok1 := kps[LeftShoulder]
	rs, ok2 := kps[RightShoulder]
	lh, ok3 := kps[LeftHip]
	rh, ok4 := kps[RightHip]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0
	}

	shoulderMid := (ls.X + rs.X) / 2
	hipMid := (lh.X + rh.X) / 2
	lean := math.Abs(shoulderMid - hipMid)
	if math.IsNaN(lean) {
		return 0
	}
	return math.Max(0, 1-lean*10)
}
