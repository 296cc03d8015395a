package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"gocv.io/x/gocv"
)

type fakeReader struct {
	props  port.VideoProps
	frames int
	read   int
	closed int
}

func (r *fakeReader) Props() port.VideoProps { return r.props }

func (r *fakeReader) Read(dst *gocv.Mat) bool {
	if r.read >= r.frames {
		return false
	}
	r.read++
	src := gocv.NewMatWithSize(r.props.Height, r.props.Width, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.CopyTo(dst)
	return true
}

func (r *fakeReader) Close() error {
	r.closed++
	return nil
}

type fakeWriter struct {
	written int
	failAt  int
	closed  int
}

func (w *fakeWriter) Write(frame gocv.Mat) error {
	if w.failAt >= 0 && w.written == w.failAt {
		return errors.New("disk full")
	}
	w.written++
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

type fakeCodec struct {
	reader    *fakeReader
	writer    *fakeWriter
	openErr   error
	createErr error
	opened    int
	created   int
}

func newFakeCodec(frames int) *fakeCodec {
	return &fakeCodec{
		reader: &fakeReader{props: port.VideoProps{FPS: 25, Width: 64, Height: 48}, frames: frames},
		writer: &fakeWriter{failAt: -1},
	}
}

func (c *fakeCodec) OpenReader(path string) (port.VideoReader, error) {
	c.opened++
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.reader, nil
}

func (c *fakeCodec) CreateWriter(path string, props port.VideoProps) (port.VideoWriter, error) {
	c.created++
	if c.createErr != nil {
		return nil, c.createErr
	}
	return c.writer, nil
}

// fakePose answers per call index: a keypoint set, an error, or nothing.
// From call goneAt on (when positive) every call fails as a dead estimator.
type fakePose struct {
	poses  map[int]movement.Keypoints
	errs   map[int]error
	panics map[int]bool
	goneAt int
	onCall func(i int)
	calls  int
	closed int
}

var errGone = fmt.Errorf("model process exited: %w", port.ErrEstimatorUnavailable)

func (p *fakePose) Estimate(ctx context.Context, frame gocv.Mat) (movement.Keypoints, error) {
	i := p.calls
	p.calls++
	if p.onCall != nil {
		p.onCall(i)
	}
	if p.goneAt > 0 && i >= p.goneAt {
		return nil, errGone
	}
	if p.panics[i] {
		panic("model crashed")
	}
	if err := p.errs[i]; err != nil {
		return nil, err
	}
	return p.poses[i], nil
}

func (p *fakePose) Close() error {
	p.closed++
	return nil
}

func kp(x, y float64) movement.Keypoint {
	return movement.Keypoint{X: x, Y: y, Visibility: 1}
}

// bentPose has both elbows and knees at 90 degrees and the upper body shifted
// sideways by lean relative to the hips.
func bentPose(lean float64) movement.Keypoints {
	return movement.Keypoints{
		movement.LeftShoulder:  kp(0.4+lean, 0.3),
		movement.RightShoulder: kp(0.6+lean, 0.3),
		movement.LeftElbow:     kp(0.4+lean, 0.45),
		movement.RightElbow:    kp(0.6+lean, 0.45),
		movement.LeftWrist:     kp(0.3+lean, 0.45),
		movement.RightWrist:    kp(0.7+lean, 0.45),
		movement.LeftHip:       kp(0.45, 0.6),
		movement.RightHip:      kp(0.55, 0.6),
		movement.LeftKnee:      kp(0.45, 0.75),
		movement.RightKnee:     kp(0.55, 0.75),
		movement.LeftAnkle:     kp(0.35, 0.75),
		movement.RightAnkle:    kp(0.65, 0.75),
	}
}

// straightPose has straight arms and legs and no lean.
func straightPose() movement.Keypoints {
	return movement.Keypoints{
		movement.LeftShoulder:  kp(0.4, 0.3),
		movement.RightShoulder: kp(0.6, 0.3),
		movement.LeftElbow:     kp(0.4, 0.45),
		movement.RightElbow:    kp(0.6, 0.45),
		movement.LeftWrist:     kp(0.4, 0.6),
		movement.RightWrist:    kp(0.6, 0.6),
		movement.LeftHip:       kp(0.4, 0.6),
		movement.RightHip:      kp(0.6, 0.6),
		movement.LeftKnee:      kp(0.4, 0.75),
		movement.RightKnee:     kp(0.6, 0.75),
		movement.LeftAnkle:     kp(0.4, 0.9),
		movement.RightAnkle:    kp(0.6, 0.9),
	}
}
