package aggregates

import "context"

type store interface {
	Get(ctx context.Context, userID string) (Aggregate, error)
	RecordCreated(ctx context.Context, userID string, textLength int, confidence float64) (Aggregate, error)
	RecordDeleted(ctx context.Context, userID string, textLength int) (Aggregate, error)
	AdjustTextTotal(ctx context.Context, userID string, delta int) error
}

// Service maintains per-user aggregates via an underlying store.
type Service struct {
	store store
}

// NewService constructs a Service over the given store.
func NewService(s store) *Service {
	return &Service{store: s}
}

// Get returns the current aggregate for a user; a user with no extractions
// gets a zero-valued aggregate.
func (s *Service) Get(ctx context.Context, userID string) (Aggregate, error) {
	return s.store.Get(ctx, userID)
}

// OnExtractionCreated folds a new extraction into the running statistics.
// The update is atomic with respect to concurrent extractions by the same
// user.
func (s *Service) OnExtractionCreated(ctx context.Context, userID string, textLength int, confidence float64) (Aggregate, error) {
	return s.store.RecordCreated(ctx, userID, textLength, confidence)
}

// OnExtractionDeleted unwinds a deleted extraction. Counters floor at zero
// and the average is recomputed exactly over the remaining records rather
// than adjusted incrementally, to avoid compounding floating-point drift.
func (s *Service) OnExtractionDeleted(ctx context.Context, userID string, textLength int) (Aggregate, error) {
	return s.store.RecordDeleted(ctx, userID, textLength)
}

// OnTextEdited adjusts the cumulative text length after a manual edit.
func (s *Service) OnTextEdited(ctx context.Context, userID string, delta int) error {
	return s.store.AdjustTextTotal(ctx, userID, delta)
}
