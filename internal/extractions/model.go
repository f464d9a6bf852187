package extractions

import "time"

// Extraction is one processed file: the persisted result of running a
// document or image through the extraction workflow. Records are owned by
// exactly one user and immutable apart from manual text edits.
type Extraction struct {
	ID               string
	UserID           string
	FileName         string
	FileType         string
	FileSizeBytes    int64
	ExtractedText    string
	ConfidenceScore  float64
	ProcessingTimeMs int64
	StorageKey       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListQuery filters and pages a user's extraction list.
type ListQuery struct {
	Limit    int
	Offset   int
	Search   string
	FileType string
}
