package port

import (
	"context"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
)

// StatusPublisher announces analysis state changes to downstream consumers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.AnalysisStatusMessage) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, body []byte, reason string) error
}
