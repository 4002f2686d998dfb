package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skyanchor/skyanchor/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreatePositioning(ctx context.Context, rec *models.Positioning) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positionings (id, user_id, image_path, ra, dec, field_width, field_height, orientation, solved, solve_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.UserID, rec.ImagePath, rec.RA, rec.Dec, rec.FieldWidth, rec.FieldHeight,
		rec.Orientation, rec.Solved, rec.SolveTime, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create positioning: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPositioning(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Positioning, error) {
	var rec models.Positioning
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, image_path, ra, dec, field_width, field_height, orientation, solved, solve_time, created_at
		 FROM positionings WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&rec.ID, &rec.UserID, &rec.ImagePath, &rec.RA, &rec.Dec, &rec.FieldWidth,
		&rec.FieldHeight, &rec.Orientation, &rec.Solved, &rec.SolveTime, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get positioning: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListPositionings(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Positioning, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, image_path, ra, dec, field_width, field_height, orientation, solved, solve_time, created_at
		 FROM positionings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list positionings: %w", err)
	}
	defer rows.Close()

	var recs []*models.Positioning
	for rows.Next() {
		var rec models.Positioning
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ImagePath, &rec.RA, &rec.Dec, &rec.FieldWidth,
			&rec.FieldHeight, &rec.Orientation, &rec.Solved, &rec.SolveTime, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan positioning: %w", err)
		}
		recs = append(recs, &rec)
	}
	if recs == nil {
		recs = []*models.Positioning{}
	}
	return recs, rows.Err()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
