package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFailureMailHeaders(t *testing.T) {
	m := failureMail{
		From:       "noreply@x",
		To:         "dancer@x",
		AnalysisID: "abc-123",
		Video:      "u1/clip.mp4",
		Reason:     "analyze_video: cannot open video file",
		Date:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	msg := string(m.Bytes())

	assert.True(t, strings.HasPrefix(msg, "From: noreply@x\r\nTo: dancer@x\r\n"))
	assert.Contains(t, msg, "Subject: Your dance video could not be analyzed [abc-123]")
	assert.Contains(t, msg, "Date: Fri, 02 Jan 2026 03:04:05 +0000")
	assert.Contains(t, msg, "Video: u1/clip.mp4")
	assert.Contains(t, msg, "Reason: analyze_video: cannot open video file")
	assert.Contains(t, msg, "full body is visible")
}

func TestFailureMailHints(t *testing.T) {
	download := failureMail{Reason: "download_video: source video not found"}
	assert.Equal(t, []string{"the uploaded file could not be read back, please upload it again"}, download.hints())

	other := failureMail{Reason: "upload_results: timeout"}
	assert.Contains(t, other.hints()[0], "problem on our side")
}

func TestNotifyFailureWithoutRecipient(t *testing.T) {
	n := NewSMTPNotifier("127.0.0.1", 1, "noreply@x", zap.NewNop())
	assert.NoError(t, n.NotifyFailure(context.Background(), "", "id", "key", "err"))
}
