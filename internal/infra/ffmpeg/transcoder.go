package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Transcoder re-encodes the OpenCV mp4v output to H.264 so browsers can play
// it inline.
type Transcoder struct {
	binary string
	logger *zap.Logger
}

func NewTranscoder(binary string, logger *zap.Logger) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{binary: binary, logger: logger}
}

func transcodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "veryfast",
		"-movflags", "+faststart",
		"-an",
		"-y",
		outputPath,
	}
}

func (t *Transcoder) TranscodeH264(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, t.binary, transcodeArgs(inputPath, outputPath)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}
	t.logger.Info("video transcoded to h264", zap.String("output", outputPath))
	return nil
}
