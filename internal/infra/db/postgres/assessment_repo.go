package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/claimsight/assess-gateway/internal/domain/assessment"
)

type AssessmentRepository struct {
	db *sql.DB
}

func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Save inserts or updates an assessment record
func (r *AssessmentRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO damage_assessments
  (id, image_hash, category, status, error_code, confidence, summary, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  category=EXCLUDED.category,
  status=EXCLUDED.status,
  error_code=EXCLUDED.error_code,
  confidence=EXCLUDED.confidence,
  summary=EXCLUDED.summary,
  duration_ms=EXCLUDED.duration_ms;
`
	hash := a.ImageHash
	if strings.TrimSpace(hash) == "" {
		hash = "-"
	}
	category := a.Category
	if category == "" {
		category = domain.CategoryGeneral
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, hash, category, a.Status, a.ErrorCode, a.Confidence, a.Summary, a.DurationMS, createdAt)
	return err
}

// Latest returns the newest records ordered by created_at desc
func (r *AssessmentRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
SELECT id, image_hash, category, status, error_code, confidence, summary, duration_ms, created_at
FROM damage_assessments
ORDER BY created_at DESC, id DESC
LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.ImageHash, &rec.Category, &rec.Status, &rec.ErrorCode,
			&rec.Confidence, &rec.Summary, &rec.DurationMS, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Get returns a single record by id; sql.ErrNoRows when absent
func (r *AssessmentRepository) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	const q = `
SELECT id, image_hash, category, status, error_code, confidence, summary, duration_ms, created_at
FROM damage_assessments
WHERE id=$1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	var rec domain.Record
	var created time.Time
	if err := row.Scan(&rec.ID, &rec.ImageHash, &rec.Category, &rec.Status, &rec.ErrorCode,
		&rec.Confidence, &rec.Summary, &rec.DurationMS, &created); err != nil {
		return nil, err
	}
	rec.CreatedAt = created
	return &rec, nil
}
