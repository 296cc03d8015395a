package opencv

import (
	"fmt"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"gocv.io/x/gocv"
)

// DefaultFourCC is the MPEG-4 Part 2 codec every OpenCV build can write.
const DefaultFourCC = "mp4v"

// Codec decodes and encodes videos with OpenCV.
type Codec struct {
	fourcc string
}

func NewCodec(fourcc string) *Codec {
	if fourcc == "" {
		fourcc = DefaultFourCC
	}
	return &Codec{fourcc: fourcc}
}

func (c *Codec) OpenReader(path string) (port.VideoReader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture not opened: %s", path)
	}

	return &reader{
		vc: vc,
		props: port.VideoProps{
			FPS:        vc.Get(gocv.VideoCaptureFPS),
			Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FrameCount: int(vc.Get(gocv.VideoCaptureFrameCount)),
		},
	}, nil
}

func (c *Codec) CreateWriter(path string, props port.VideoProps) (port.VideoWriter, error) {
	vw, err := gocv.VideoWriterFile(path, c.fourcc, props.FPS, props.Width, props.Height, true)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("writer not opened: %s (%s %dx%d@%.2f)", path, c.fourcc, props.Width, props.Height, props.FPS)
	}
	return &writer{vw: vw}, nil
}

type reader struct {
	vc    *gocv.VideoCapture
	props port.VideoProps
}

func (r *reader) Props() port.VideoProps { return r.props }

func (r *reader) Read(dst *gocv.Mat) bool {
	return r.vc.Read(dst)
}

func (r *reader) Close() error {
	return r.vc.Close()
}

type writer struct {
	vw *gocv.VideoWriter
}

func (w *writer) Write(frame gocv.Mat) error {
	return w.vw.Write(frame)
}

func (w *writer) Close() error {
	return w.vw.Close()
}
