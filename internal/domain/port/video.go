package port

import "gocv.io/x/gocv"

type VideoProps struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int
}

type VideoReader interface {
	Props() VideoProps
	// Read decodes the next frame into dst and reports false at end of stream.
	Read(dst *gocv.Mat) bool
	Close() error
}

type VideoWriter interface {
	Write(frame gocv.Mat) error
	Close() error
}

type VideoCodec interface {
	OpenReader(path string) (VideoReader, error)
	CreateWriter(path string, props VideoProps) (VideoWriter, error)
}
