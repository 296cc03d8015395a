package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

func (r *AnalysisRepository) Create(ctx context.Context, a *entity.Analysis) error {
	summary, frames, err := encodeResult(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analyses (
			id, user_id, source, input_name, output_key, status,
			summary, frames, frame_count, video_duration,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.UserID, string(a.Source), a.InputName, a.OutputKey, string(a.Status),
		summary, frames, len(a.Frames), a.VideoDuration,
		a.ErrorMessage, a.CreatedAt, a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) Update(ctx context.Context, a *entity.Analysis) error {
	summary, frames, err := encodeResult(a)
	if err != nil {
		return err
	}

	query := `
		UPDATE analyses SET
			status=$2, output_key=$3, summary=$4, frames=$5, frame_count=$6,
			video_duration=$7, error_message=$8, updated_at=$9, completed_at=$10
		WHERE id=$1`

	_, err = r.pool.Exec(ctx, query,
		a.ID, string(a.Status), a.OutputKey, summary, frames, len(a.Frames),
		a.VideoDuration, a.ErrorMessage, a.UpdatedAt, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error) {
	query := `
		SELECT id, user_id, source, input_name, output_key, status,
			summary, frames, video_duration, error_message,
			created_at, updated_at, completed_at
		FROM analyses WHERE id=$1`

	a := &entity.Analysis{}
	var source, status string
	var summary, frames []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &source, &a.InputName, &a.OutputKey, &status,
		&summary, &frames, &a.VideoDuration, &a.ErrorMessage,
		&a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find analysis by id: %w", err)
	}
	a.Source = entity.Source(source)
	a.Status = entity.AnalysisStatus(status)
	if err := decodeResult(a, summary, frames); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AnalysisRepository) ListRecent(ctx context.Context, limit int) ([]*entity.Analysis, error) {
	query := `
		SELECT id, user_id, source, input_name, output_key, status,
			summary, video_duration, error_message,
			created_at, updated_at, completed_at
		FROM analyses ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []*entity.Analysis
	for rows.Next() {
		a := &entity.Analysis{}
		var source, status string
		var summary []byte
		if err := rows.Scan(
			&a.ID, &a.UserID, &source, &a.InputName, &a.OutputKey, &status,
			&summary, &a.VideoDuration, &a.ErrorMessage,
			&a.CreatedAt, &a.UpdatedAt, &a.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		a.Source = entity.Source(source)
		a.Status = entity.AnalysisStatus(status)
		if err := decodeResult(a, summary, nil); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Ping is used as a health check.
func (r *AnalysisRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func encodeResult(a *entity.Analysis) (summary, frames []byte, err error) {
	if a.Summary != nil {
		if summary, err = a.Summary.StoredJSON(); err != nil {
			return nil, nil, fmt.Errorf("encode summary: %w", err)
		}
	}
	if a.Frames != nil {
		if frames, err = json.Marshal(a.Frames); err != nil {
			return nil, nil, fmt.Errorf("encode frames: %w", err)
		}
	}
	return summary, frames, nil
}

func decodeResult(a *entity.Analysis, summary, frames []byte) error {
	if len(summary) > 0 {
		var s movement.Summary
		if err := json.Unmarshal(summary, &s); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
		a.Summary = &s
	}
	if len(frames) > 0 {
		if err := json.Unmarshal(frames, &a.Frames); err != nil {
			return fmt.Errorf("decode frames: %w", err)
		}
	}
	return nil
}
