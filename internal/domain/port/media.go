package port

import (
	"context"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
)

type ProbeResult struct {
	Duration float64
	Codec    string
}

type VideoProber interface {
	Probe(ctx context.Context, videoPath string) (*ProbeResult, error)
}

type Transcoder interface {
	TranscodeH264(ctx context.Context, inputPath, outputPath string) error
}

type BundleEntry struct {
	Name string
	Path string
	Data []byte
}

type Zipper interface {
	CreateZip(ctx context.Context, entries []BundleEntry, outputPath string) error
}

type ChartRenderer interface {
	RenderTimeline(frames []movement.FrameAnalysis, title, outputPath string) error
}
