package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseProbe(t *testing.T) {
	res, err := parseProbe([]byte(`{"streams":[{"codec_name":"mpeg4"}],"format":{"duration":"12.480000"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 12.48, res.Duration, 1e-9)
	assert.Equal(t, "mpeg4", res.Codec)

	_, err = parseProbe([]byte(`{"format":{"duration":"n/a"}}`))
	assert.Error(t, err)

	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs("in.mp4", "out.mp4")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "+faststart")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestMissingBinaries(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0o644))

	_, err := NewProber("definitely-not-ffprobe", zap.NewNop()).Probe(context.Background(), in)
	assert.Error(t, err)

	err = NewTranscoder("definitely-not-ffmpeg", zap.NewNop()).TranscodeH264(context.Background(), in, in+".h264.mp4")
	assert.Error(t, err)
	assert.NoFileExists(t, in+".h264.mp4")
}
