// Package email tells users by mail that their analysis could not be done.
package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	addr   string
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{addr: fmt.Sprintf("%s:%d", host, port), from: from, logger: logger}
}

// NotifyFailure mails the user. Without a recipient it does nothing.
func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, analysisID, videoKey, errorMsg string) error {
	log := n.logger.With(zap.String("analysis_id", analysisID))
	if userEmail == "" {
		log.Debug("no recipient for failure notification")
		return nil
	}

	m := failureMail{
		From:       n.from,
		To:         userEmail,
		AnalysisID: analysisID,
		Video:      videoKey,
		Reason:     errorMsg,
		Date:       time.Now(),
	}
	if err := smtp.SendMail(n.addr, nil, n.from, []string{userEmail}, m.Bytes()); err != nil {
		log.Error("failure notification not sent", zap.String("to", userEmail), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}

	log.Info("failure notification sent", zap.String("to", userEmail))
	return nil
}

type failureMail struct {
	From       string
	To         string
	AnalysisID string
	Video      string
	Reason     string
	Date       time.Time
}

// hints picks the advice that matches the stage that failed.
func (m failureMail) hints() []string {
	switch {
	case strings.HasPrefix(m.Reason, "download_video"):
		return []string{
			"the uploaded file could not be read back, please upload it again",
		}
	case strings.HasPrefix(m.Reason, "analyze_video"):
		return []string{
			"upload MP4, MOV, AVI or MKV files",
			"check that the file plays in a regular video player",
			"make sure the dancer's full body is visible, in good light",
		}
	default:
		return []string{"this looks like a problem on our side, please try again later"}
	}
}

func (m failureMail) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: Your dance video could not be analyzed [%s]\r\n", m.AnalysisID)
	fmt.Fprintf(&b, "Date: %s\r\n", m.Date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")

	b.WriteString("Hello,\r\n\r\nWe could not analyze your dance video.\r\n\r\n")
	fmt.Fprintf(&b, "Analysis: %s\r\nVideo: %s\r\nReason: %s\r\n\r\n", m.AnalysisID, m.Video, m.Reason)
	b.WriteString("What you can do:\r\n")
	for _, h := range m.hints() {
		fmt.Fprintf(&b, "- %s\r\n", h)
	}
	b.WriteString("\r\n-- Dance Movement Analysis\r\n")
	return b.Bytes()
}
