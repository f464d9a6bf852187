package extractions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const extractionColumns = `id, user_id, file_name, file_type, file_size_bytes, extracted_text, confidence_score, processing_time_ms, storage_key, created_at, updated_at`

// Create inserts a new extraction record.
func (r *PGRepo) Create(ctx context.Context, ex Extraction) error {
	const query = `
INSERT INTO extractions (
    id,
    user_id,
    file_name,
    file_type,
    file_size_bytes,
    extracted_text,
    confidence_score,
    processing_time_ms,
    storage_key,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var storageKey sql.NullString
	if ex.StorageKey != "" {
		storageKey = sql.NullString{String: ex.StorageKey, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		ex.ID,
		ex.UserID,
		ex.FileName,
		ex.FileType,
		ex.FileSizeBytes,
		ex.ExtractedText,
		ex.ConfidenceScore,
		ex.ProcessingTimeMs,
		storageKey,
		ex.CreatedAt,
		ex.UpdatedAt,
	)
	return err
}

// GetByID returns a record by ID, scoped to the owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Extraction, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM extractions
WHERE user_id = $1 AND id = $2 AND deleted_at IS NULL
LIMIT 1`, extractionColumns)

	ex, err := scanExtraction(r.DB.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Extraction{}, ErrNotFound
		}
		return Extraction{}, err
	}
	return ex, nil
}

// ListByUser returns one page of records, newest first, plus the total
// count matching the query.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, q ListQuery) ([]Extraction, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{"user_id = $1", "deleted_at IS NULL"}
	args := []any{userID}
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(file_name ILIKE $%d OR extracted_text ILIKE $%d)", n, n))
	}
	if q.FileType != "" {
		args = append(args, q.FileType)
		where = append(where, fmt.Sprintf("file_type = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM extractions WHERE %s`, whereClause)
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(`
SELECT %s
FROM extractions
WHERE %s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d`, extractionColumns, whereClause, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Extraction{}
	for rows.Next() {
		ex, err := scanExtraction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ex)
	}
	return out, total, rows.Err()
}

// ListAllByUser returns every current record for a user, oldest first.
func (r *PGRepo) ListAllByUser(ctx context.Context, userID string) ([]Extraction, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM extractions
WHERE user_id = $1 AND deleted_at IS NULL
ORDER BY created_at ASC`, extractionColumns)

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extraction
	for rows.Next() {
		ex, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// ListConfidences returns the confidence scores of a user's current records.
func (r *PGRepo) ListConfidences(ctx context.Context, userID string) ([]float64, error) {
	const query = `
SELECT confidence_score
FROM extractions
WHERE user_id = $1 AND deleted_at IS NULL`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var conf float64
		if err := rows.Scan(&conf); err != nil {
			return nil, err
		}
		out = append(out, conf)
	}
	return out, rows.Err()
}

// UpdateText replaces the extracted text of an owned record.
func (r *PGRepo) UpdateText(ctx context.Context, userID, id, text string, confidence float64, updatedAt time.Time) error {
	const query = `
UPDATE extractions
SET extracted_text = $1, confidence_score = $2, updated_at = $3
WHERE user_id = $4 AND id = $5 AND deleted_at IS NULL`

	res, err := r.DB.ExecContext(ctx, query, text, confidence, updatedAt, userID, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks an owned record deleted.
func (r *PGRepo) SoftDelete(ctx context.Context, userID, id string, deletedAt time.Time) error {
	const query = `
UPDATE extractions
SET deleted_at = $1
WHERE user_id = $2 AND id = $3 AND deleted_at IS NULL`

	res, err := r.DB.ExecContext(ctx, query, deletedAt, userID, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (Extraction, error) {
	var ex Extraction
	var storageKey sql.NullString
	err := row.Scan(
		&ex.ID,
		&ex.UserID,
		&ex.FileName,
		&ex.FileType,
		&ex.FileSizeBytes,
		&ex.ExtractedText,
		&ex.ConfidenceScore,
		&ex.ProcessingTimeMs,
		&storageKey,
		&ex.CreatedAt,
		&ex.UpdatedAt,
	)
	if err != nil {
		return Extraction{}, err
	}
	if storageKey.Valid {
		ex.StorageKey = storageKey.String
	}
	return ex, nil
}

var _ Repo = (*PGRepo)(nil)
