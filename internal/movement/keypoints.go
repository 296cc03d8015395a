// Package movement holds the pure metric math of the analyzer: landmark
// numbering, joint angles, posture stability and per-video aggregation.
package movement

// Pose landmark indices following the MediaPipe 33-point body model.
const (
	Nose            = 0
	LeftEyeInner    = 1
	LeftEye         = 2
	LeftEyeOuter    = 3
	RightEyeInner   = 4
	RightEye        = 5
	RightEyeOuter   = 6
	LeftEar         = 7
	RightEar        = 8
	MouthLeft       = 9
	MouthRight      = 10
	LeftShoulder    = 11
	RightShoulder   = 12
	LeftElbow       = 13
	RightElbow      = 14
	LeftWrist       = 15
	RightWrist      = 16
	LeftPinky       = 17
	RightPinky      = 18
	LeftIndex       = 19
	RightIndex      = 20
	LeftThumb       = 21
	RightThumb      = 22
	LeftHip         = 23
	RightHip        = 24
	LeftKnee        = 25
	RightKnee       = 26
	LeftAnkle       = 27
	RightAnkle      = 28
	LeftHeel        = 29
	RightHeel       = 30
	LeftFootIndex   = 31
	RightFootIndex  = 32
	NumPoseLandmark = 33
)

// Keypoint is one landmark of one frame. X and Y are normalized to the frame
// size, Z is a relative depth estimate and Visibility is in [0,1].
type Keypoint struct {
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z" msgpack:"z"`
	Visibility float64 `json:"visibility" msgpack:"visibility"`
}

// Keypoints maps a landmark index to its keypoint. Landmarks the model did not
// report are simply absent.
type Keypoints map[int]Keypoint

// Connection is a pair of landmarks joined by a skeleton segment.
type Connection [2]int

// PoseConnections lists the anatomically adjacent landmark pairs drawn as the
// skeleton overlay.
var PoseConnections = []Connection{
	{Nose, RightEyeInner}, {RightEyeInner, RightEye}, {RightEye, RightEyeOuter}, {RightEyeOuter, RightEar},
	{Nose, LeftEyeInner}, {LeftEyeInner, LeftEye}, {LeftEye, LeftEyeOuter}, {LeftEyeOuter, LeftEar},
	{MouthLeft, MouthRight},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
	{LeftWrist, LeftPinky}, {LeftWrist, LeftIndex}, {LeftWrist, LeftThumb}, {LeftPinky, LeftIndex},
	{RightShoulder, RightElbow}, {RightElbow, RightWrist},
	{RightWrist, RightPinky}, {RightWrist, RightIndex}, {RightWrist, RightThumb}, {RightPinky, RightIndex},
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip}, {LeftHip, RightHip},
	{LeftHip, LeftKnee}, {RightHip, RightKnee},
	{LeftKnee, LeftAnkle}, {RightKnee, RightAnkle},
	{LeftAnkle, LeftHeel}, {RightAnkle, RightHeel},
	{LeftHeel, LeftFootIndex}, {RightHeel, RightFootIndex},
	{LeftAnkle, LeftFootIndex}, {RightAnkle, RightFootIndex},
}

// FromSlice numbers a landmark list in model order.
func FromSlice(points []Keypoint) Keypoints {
	if len(points) == 0 {
		return nil
	}
	kps := make(Keypoints, len(points))
	for i, p := range points {
		kps[i] = p
	}
	return kps
}
