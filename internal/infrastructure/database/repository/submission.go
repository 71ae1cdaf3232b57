package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"civigate/internal/domain/models"
)

// SubmissionRepository journals server-issued tracking codes. The citizen
// only ever holds the code itself, so the staff dashboard relies on this
// journal for its recent-submissions view.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Record inserts a journal row for a successful submission
func (r *SubmissionRepository) Record(ctx context.Context, rec *models.SubmissionRecord) (*models.SubmissionRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}

	query := `
		INSERT INTO submissions (
			id, tracking_code, category, title, priority,
			is_anonymous, has_video, image_count, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) RETURNING id, submitted_at`

	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.TrackingCode, rec.Category, rec.Title, rec.Priority,
		rec.IsAnonymous, rec.HasVideo, rec.ImageCount, rec.SubmittedAt,
	).Scan(&rec.ID, &rec.SubmittedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	return rec, nil
}

// List returns journal rows, most recent first
func (r *SubmissionRepository) List(ctx context.Context, limit, offset int) ([]*models.SubmissionRecord, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query := `
		SELECT id, tracking_code, category, title, priority,
		       is_anonymous, has_video, image_count, submitted_at
		FROM submissions
		ORDER BY submitted_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var records []*models.SubmissionRecord
	for rows.Next() {
		var rec models.SubmissionRecord
		if err := rows.Scan(
			&rec.ID, &rec.TrackingCode, &rec.Category, &rec.Title, &rec.Priority,
			&rec.IsAnonymous, &rec.HasVideo, &rec.ImageCount, &rec.SubmittedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan submission: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	return records, total, nil
}

// GetByTrackingCode returns the journal row for a tracking code, if any
func (r *SubmissionRepository) GetByTrackingCode(ctx context.Context, code string) (*models.SubmissionRecord, error) {
	query := `
		SELECT id, tracking_code, category, title, priority,
		       is_anonymous, has_video, image_count, submitted_at
		FROM submissions
		WHERE tracking_code = $1`

	var rec models.SubmissionRecord
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&rec.ID, &rec.TrackingCode, &rec.Category, &rec.Title, &rec.Priority,
		&rec.IsAnonymous, &rec.HasVideo, &rec.ImageCount, &rec.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", code, err)
	}

	return &rec, nil
}
