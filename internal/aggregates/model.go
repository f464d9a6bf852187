package aggregates

import "time"

// Aggregate is a user's running extraction statistics. AverageConfidence is
// kept equal to the arithmetic mean of confidence over the user's current
// (non-deleted) extraction records after every insert and delete.
type Aggregate struct {
	UserID              string    `json:"userId"`
	TotalExtractions    int64     `json:"totalExtractions"`
	TotalFilesProcessed int64     `json:"totalFilesProcessed"`
	TotalTextExtracted  int64     `json:"totalTextExtracted"`
	AverageConfidence   float64   `json:"averageConfidence"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
