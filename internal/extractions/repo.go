package extractions

import (
	"context"
	"time"
)

// Repo defines persistence operations for extraction records.
type Repo interface {
	Create(ctx context.Context, ex Extraction) error
	GetByID(ctx context.Context, userID, id string) (Extraction, error)
	// ListByUser returns one page of the user's records (newest first) plus
	// the total count matching the query.
	ListByUser(ctx context.Context, userID string, q ListQuery) ([]Extraction, int, error)
	// ListAllByUser returns every current record for a user; the analytics
	// report aggregates over it.
	ListAllByUser(ctx context.Context, userID string) ([]Extraction, error)
	ListConfidences(ctx context.Context, userID string) ([]float64, error)
	UpdateText(ctx context.Context, userID, id, text string, confidence float64, updatedAt time.Time) error
	SoftDelete(ctx context.Context, userID, id string, deletedAt time.Time) error
}
