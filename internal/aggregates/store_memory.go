package aggregates

import (
	"context"
	"sync"
	"time"
)

// ConfidenceSource lists the confidence scores of a user's current
// extraction records. The delete path uses it to recompute the exact mean.
type ConfidenceSource interface {
	ListConfidences(ctx context.Context, userID string) ([]float64, error)
}

// MemoryStore is an in-memory aggregate store. The mutex serializes the
// read-modify-write that a database transaction covers in the pg store.
type MemoryStore struct {
	mu          sync.Mutex
	data        map[string]Aggregate
	confidences ConfidenceSource
}

// NewMemoryStore constructs a MemoryStore reading remaining confidences
// from src on delete.
func NewMemoryStore(src ConfidenceSource) *MemoryStore {
	return &MemoryStore{
		data:        make(map[string]Aggregate),
		confidences: src,
	}
}

// Get returns the user's aggregate, zero-valued if absent.
func (s *MemoryStore) Get(ctx context.Context, userID string) (Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return Aggregate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.data[userID]
	if !ok {
		return Aggregate{UserID: userID}, nil
	}
	return agg, nil
}

// RecordCreated folds one extraction into the aggregate, creating it lazily.
func (s *MemoryStore) RecordCreated(ctx context.Context, userID string, textLength int, confidence float64) (Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return Aggregate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.data[userID]
	if !ok {
		agg = Aggregate{UserID: userID}
	}
	newCount := agg.TotalExtractions + 1
	agg.AverageConfidence = (agg.AverageConfidence*float64(agg.TotalExtractions) + confidence) / float64(newCount)
	agg.TotalExtractions = newCount
	agg.TotalFilesProcessed++
	agg.TotalTextExtracted += int64(textLength)
	agg.UpdatedAt = time.Now().UTC()

	s.data[userID] = agg
	return agg, nil
}

// RecordDeleted unwinds one extraction, flooring counters at zero and
// recomputing the mean over the remaining records.
func (s *MemoryStore) RecordDeleted(ctx context.Context, userID string, textLength int) (Aggregate, error) {
	remaining, err := s.confidences.ListConfidences(ctx, userID)
	if err != nil {
		return Aggregate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.data[userID]
	if !ok {
		return Aggregate{UserID: userID}, nil
	}

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
	agg.AverageConfidence = mean(remaining)
	agg.UpdatedAt = time.Now().UTC()

	s.data[userID] = agg
	return agg, nil
}

// AdjustTextTotal shifts the cumulative character count after a text edit.
func (s *MemoryStore) AdjustTextTotal(ctx context.Context, userID string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.data[userID]
	if !ok {
		return nil
	}
	agg.TotalTextExtracted += int64(delta)
	if agg.TotalTextExtracted < 0 {
		agg.TotalTextExtracted = 0
	}
	agg.UpdatedAt = time.Now().UTC()
	s.data[userID] = agg
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

var _ store = (*MemoryStore)(nil)
