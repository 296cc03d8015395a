package port

import (
	"context"
	"errors"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"gocv.io/x/gocv"
)

// PoseOptions configure a pose estimator once, at construction.
type PoseOptions struct {
	StaticImageMode        bool
	ModelComplexity        int
	SmoothLandmarks        bool
	EnableSegmentation     bool
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
}

// DefaultPoseOptions are the options every analyzer opens its estimator with.
func DefaultPoseOptions() PoseOptions {
	return PoseOptions{
		ModelComplexity:        1,
		SmoothLandmarks:        true,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// ErrEstimatorUnavailable is wrapped by estimator errors after which no later
// frame can succeed.
var ErrEstimatorUnavailable = errors.New("pose estimator unavailable")

// PoseEstimator finds at most one body in a BGR frame. A nil result with a nil
// error means no body was found.
type PoseEstimator interface {
	Estimate(ctx context.Context, frame gocv.Mat) (movement.Keypoints, error)
	Close() error
}

type PoseEstimatorFactory func(opts PoseOptions) (PoseEstimator, error)
