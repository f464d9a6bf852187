package aggregates

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGStore is a Postgres-backed aggregate store. All mutations run inside a
// transaction holding a row lock, so concurrent extractions by the same
// user serialize instead of losing updates.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed aggregate store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// Get returns the user's aggregate, zero-valued if no row exists yet.
func (s *PGStore) Get(ctx context.Context, userID string) (Aggregate, error) {
	const query = `
SELECT user_id, total_extractions, total_files_processed, total_text_extracted, average_confidence, updated_at
FROM user_aggregates
WHERE user_id = $1`
	var agg Aggregate
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(
		&agg.UserID,
		&agg.TotalExtractions,
		&agg.TotalFilesProcessed,
		&agg.TotalTextExtracted,
		&agg.AverageConfidence,
		&agg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Aggregate{UserID: userID}, nil
		}
		return Aggregate{}, err
	}
	return agg, nil
}

// RecordCreated folds one extraction into the aggregate inside a locking
// transaction, inserting the row lazily on first use.
func (s *PGStore) RecordCreated(ctx context.Context, userID string, textLength int, confidence float64) (Aggregate, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Aggregate{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	agg, found, err := lockAggregate(ctx, tx, userID)
	if err != nil {
		return Aggregate{}, err
	}

	now := time.Now().UTC()
	newCount := agg.TotalExtractions + 1
	agg.AverageConfidence = (agg.AverageConfidence*float64(agg.TotalExtractions) + confidence) / float64(newCount)
	agg.TotalExtractions = newCount
	agg.TotalFilesProcessed++
	agg.TotalTextExtracted += int64(textLength)
	agg.UpdatedAt = now

	if found {
		_, err = tx.ExecContext(ctx, `
UPDATE user_aggregates
SET total_extractions = $1, total_files_processed = $2, total_text_extracted = $3, average_confidence = $4, updated_at = $5
WHERE user_id = $6`,
			agg.TotalExtractions, agg.TotalFilesProcessed, agg.TotalTextExtracted, agg.AverageConfidence, now, userID)
	} else {
		_, err = tx.ExecContext(ctx, `
INSERT INTO user_aggregates (user_id, total_extractions, total_files_processed, total_text_extracted, average_confidence, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
    total_extractions = user_aggregates.total_extractions + 1,
    total_files_processed = user_aggregates.total_files_processed + 1,
    total_text_extracted = user_aggregates.total_text_extracted + EXCLUDED.total_text_extracted,
    average_confidence = (user_aggregates.average_confidence * user_aggregates.total_extractions + EXCLUDED.average_confidence) / (user_aggregates.total_extractions + 1),
    updated_at = EXCLUDED.updated_at`,
			userID, agg.TotalExtractions, agg.TotalFilesProcessed, agg.TotalTextExtracted, agg.AverageConfidence, now)
	}
	if err != nil {
		return Aggregate{}, err
	}
	if err = tx.Commit(); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// RecordDeleted unwinds one extraction. The average is recomputed from the
// remaining extraction rows inside the same transaction.
func (s *PGStore) RecordDeleted(ctx context.Context, userID string, textLength int) (Aggregate, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Aggregate{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	agg, found, err := lockAggregate(ctx, tx, userID)
	if err != nil {
		return Aggregate{}, err
	}
	if !found {
		if err = tx.Commit(); err != nil {
			return Aggregate{}, err
		}
		return Aggregate{UserID: userID}, nil
	}

	var avg float64
	err = tx.QueryRowContext(ctx, `
SELECT COALESCE(AVG(confidence_score), 0)
FROM extractions
WHERE user_id = $1 AND deleted_at IS NULL`, userID).Scan(&avg)
	if err != nil {
		return Aggregate{}, err
	}

	now := time.Now().UTC()
	if agg.TotalExtractions > 0 {
		agg.TotalExtractions--
	}
	if agg.TotalFilesProcessed > 0 {
		agg.TotalFilesProcessed--
	}
	agg.TotalTextExtracted -= int64(textLength)
	if agg.TotalTextExtracted < 0 {
		agg.TotalTextExtracted = 0
	}
	agg.AverageConfidence = avg
	agg.UpdatedAt = now

	if _, err = tx.ExecContext(ctx, `
UPDATE user_aggregates
SET total_extractions = $1, total_files_processed = $2, total_text_extracted = $3, average_confidence = $4, updated_at = $5
WHERE user_id = $6`,
		agg.TotalExtractions, agg.TotalFilesProcessed, agg.TotalTextExtracted, agg.AverageConfidence, now, userID); err != nil {
		return Aggregate{}, err
	}
	if err = tx.Commit(); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// AdjustTextTotal shifts the cumulative character count after a text edit.
func (s *PGStore) AdjustTextTotal(ctx context.Context, userID string, delta int) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE user_aggregates
SET total_text_extracted = GREATEST(total_text_extracted + $1, 0), updated_at = $2
WHERE user_id = $3`, delta, time.Now().UTC(), userID)
	return err
}

func lockAggregate(ctx context.Context, tx *sql.Tx, userID string) (Aggregate, bool, error) {
	var agg Aggregate
	row := tx.QueryRowContext(ctx, `
SELECT user_id, total_extractions, total_files_processed, total_text_extracted, average_confidence, updated_at
FROM user_aggregates
WHERE user_id = $1
FOR UPDATE`, userID)
	err := row.Scan(
		&agg.UserID,
		&agg.TotalExtractions,
		&agg.TotalFilesProcessed,
		&agg.TotalTextExtracted,
		&agg.AverageConfidence,
		&agg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Aggregate{UserID: userID}, false, nil
		}
		return Aggregate{}, false, err
	}
	return agg, true, nil
}

var _ store = (*PGStore)(nil)
