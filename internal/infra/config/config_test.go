package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, 10*time.Second, cfg.PoseTimeout)
	assert.Equal(t, []string{"scripts/pose_worker.py"}, cfg.PoseWorkerArgs)
	assert.Equal(t, "mp4v", cfg.VideoFourCC)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, int64(500<<20), cfg.MaxUploadBytes())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POSE_WORKER_ARGS", "-m pose_worker --device cpu")
	t.Setenv("POSE_TIMEOUT", "2s")
	t.Setenv("TRANSCODE_H264", "true")
	t.Setenv("WORKER_COUNT", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"-m", "pose_worker", "--device", "cpu"}, cfg.PoseWorkerArgs)
	assert.Equal(t, 2*time.Second, cfg.PoseTimeout)
	assert.True(t, cfg.TranscodeH264)
	assert.Equal(t, 4, cfg.WorkerCount)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("POSE_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
