// Package sqlite keeps the local analysis history of the studio UI.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of concurrent requests.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: that would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context, a *entity.Analysis) error {
	summary, frames, err := encodeResult(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (
			id, user_id, source, input_name, output_path, chart_path, status,
			summary, frames, video_duration, error_message,
			created_at, updated_at, completed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID.String(), a.UserID, string(a.Source), a.InputName, a.OutputPath, a.ChartPath, string(a.Status),
		summary, frames, a.VideoDuration, a.ErrorMessage,
		a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano(), nullableTime(a.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, a *entity.Analysis) error {
	summary, frames, err := encodeResult(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE analyses SET
			status=?, output_path=?, chart_path=?, summary=?, frames=?,
			video_duration=?, error_message=?, updated_at=?, completed_at=?
		WHERE id=?`,
		string(a.Status), a.OutputPath, a.ChartPath, summary, frames,
		a.VideoDuration, a.ErrorMessage, a.UpdatedAt.UnixNano(), nullableTime(a.CompletedAt),
		a.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return port.ErrAnalysisNotFound
	}
	return nil
}

const selectColumns = `id, user_id, source, input_name, output_path, chart_path, status,
	summary, frames, video_duration, error_message, created_at, updated_at, completed_at`

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM analyses WHERE id=?`, id.String())
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find analysis by id: %w", err)
	}
	return a, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*entity.Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM analyses ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []*entity.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(sc scanner) (*entity.Analysis, error) {
	var (
		a                  entity.Analysis
		id, source, status string
		summary, frames    sql.NullString
		created, updated   int64
		completed          sql.NullInt64
	)
	err := sc.Scan(&id, &a.UserID, &source, &a.InputName, &a.OutputPath, &a.ChartPath, &status,
		&summary, &frames, &a.VideoDuration, &a.ErrorMessage, &created, &updated, &completed)
	if err != nil {
		return nil, err
	}

	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	a.Source = entity.Source(source)
	a.Status = entity.AnalysisStatus(status)
	a.CreatedAt = time.Unix(0, created).UTC()
	a.UpdatedAt = time.Unix(0, updated).UTC()
	if completed.Valid {
		t := time.Unix(0, completed.Int64).UTC()
		a.CompletedAt = &t
	}
	if summary.Valid {
		var sum movement.Summary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		a.Summary = &sum
	}
	if frames.Valid {
		if err := json.Unmarshal([]byte(frames.String), &a.Frames); err != nil {
			return nil, fmt.Errorf("decode frames: %w", err)
		}
	}
	return &a, nil
}

func encodeResult(a *entity.Analysis) (summary, frames sql.NullString, err error) {
	if a.Summary != nil {
		b, err := a.Summary.StoredJSON()
		if err != nil {
			return summary, frames, fmt.Errorf("encode summary: %w", err)
		}
		summary = sql.NullString{String: string(b), Valid: true}
	}
	if a.Frames != nil {
		b, err := json.Marshal(a.Frames)
		if err != nil {
			return summary, frames, fmt.Errorf("encode frames: %w", err)
		}
		frames = sql.NullString{String: string(b), Valid: true}
	}
	return summary, frames, nil
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
