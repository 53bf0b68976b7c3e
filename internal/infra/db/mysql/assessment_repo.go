package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/claimsight/assess-gateway/internal/domain/assessment"
)

type AssessmentRepository struct {
	db *sql.DB
}

func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Save inserts an assessment record
func (r *AssessmentRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO damage_assessments
  (id, image_hash, category, status, error_code, confidence, summary, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  category=VALUES(category), status=VALUES(status), error_code=VALUES(error_code),
  confidence=VALUES(confidence), summary=VALUES(summary), duration_ms=VALUES(duration_ms);
`
	// Ensure non-nullable columns have safe defaults
	hash := stringOrDash(a.ImageHash)
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
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns a single record by id; sql.ErrNoRows when absent
func (r *AssessmentRepository) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	const q = `
SELECT id, image_hash, category, status, error_code, confidence, summary, duration_ms, created_at
FROM damage_assessments
WHERE id=?;
`
	row := r.db.QueryRowContext(ctx, q, id)
	return scanRecord(row.Scan)
}

func scanRecord(scan func(dest ...any) error) (*domain.Record, error) {
	var rec domain.Record
	var created time.Time
	if err := scan(&rec.ID, &rec.ImageHash, &rec.Category, &rec.Status, &rec.ErrorCode,
		&rec.Confidence, &rec.Summary, &rec.DurationMS, &created); err != nil {
		return nil, err
	}
	rec.CreatedAt = created
	return &rec, nil
}
