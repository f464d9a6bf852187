package extractions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo, used when no database
// is configured.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Extraction // userID -> records
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string][]Extraction)}
}

// Create stores a new extraction record.
func (r *MemoryRepo) Create(ctx context.Context, ex Extraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[ex.UserID] = append(r.data[ex.UserID], ex)
	return nil
}

// GetByID returns a record by ID, scoped to the owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ex := range r.data[userID] {
		if ex.ID == id {
			return ex, nil
		}
	}
	return Extraction{}, ErrNotFound
}

// ListByUser returns one page, newest first, plus the total match count.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, q ListQuery) ([]Extraction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	var matched []Extraction
	for _, ex := range r.data[userID] {
		if !matchesQuery(ex, q) {
			continue
		}
		matched = append(matched, ex)
	}
	r.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Extraction{}, total, nil
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}
	return matched[offset:end], total, nil
}

// ListAllByUser returns every record for a user.
func (r *MemoryRepo) ListAllByUser(ctx context.Context, userID string) ([]Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Extraction, len(r.data[userID]))
	copy(out, r.data[userID])
	return out, nil
}

// ListConfidences returns the confidence scores of a user's records.
func (r *MemoryRepo) ListConfidences(ctx context.Context, userID string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []float64
	for _, ex := range r.data[userID] {
		out = append(out, ex.ConfidenceScore)
	}
	return out, nil
}

// UpdateText replaces the extracted text of an owned record.
func (r *MemoryRepo) UpdateText(ctx context.Context, userID, id, text string, confidence float64, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.data[userID]
	for i := range records {
		if records[i].ID == id {
			records[i].ExtractedText = text
			records[i].ConfidenceScore = confidence
			records[i].UpdatedAt = updatedAt
			r.data[userID] = records
			return nil
		}
	}
	return ErrNotFound
}

// SoftDelete removes an owned record.
func (r *MemoryRepo) SoftDelete(ctx context.Context, userID, id string, deletedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = deletedAt
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.data[userID]
	for i := range records {
		if records[i].ID == id {
			r.data[userID] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func matchesQuery(ex Extraction, q ListQuery) bool {
	if q.FileType != "" && !strings.EqualFold(ex.FileType, q.FileType) {
		return false
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		lowered := strings.ToLower(search)
		if !strings.Contains(strings.ToLower(ex.FileName), lowered) &&
			!strings.Contains(strings.ToLower(ex.ExtractedText), lowered) {
			return false
		}
	}
	return true
}

var _ Repo = (*MemoryRepo)(nil)
