package port

import (
	"context"
	"errors"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/google/uuid"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entity.Analysis) error
	Update(ctx context.Context, analysis *entity.Analysis) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error)
}

type AnalysisLister interface {
	ListRecent(ctx context.Context, limit int) ([]*entity.Analysis, error)
}
