package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"docutext-backend/internal/aggregates"
	"docutext-backend/internal/extractions"
	"docutext-backend/internal/shared/telemetry"
)

// cacheTTL bounds how stale a cached report may get.
const cacheTTL = 60 * time.Second

const dailyWindowDays = 7

// Range bounds a report to an inclusive UTC date window. A zero Range
// selects the default trailing window.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) isZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// DailyCount is the number of extractions created on one calendar day (UTC).
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// FileTypeCount is the share of one MIME type in a user's history.
type FileTypeCount struct {
	FileType string `json:"fileType"`
	Count    int    `json:"count"`
}

// ConfidenceBucket is one band of the fixed confidence histogram.
type ConfidenceBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Report is the full analytics payload for one user.
type Report struct {
	UserAnalytics          aggregates.Aggregate `json:"userAnalytics"`
	DailyExtractions       []DailyCount         `json:"dailyExtractions"`
	FileTypeDistribution   []FileTypeCount      `json:"fileTypeDistribution"`
	ConfidenceDistribution []ConfidenceBucket   `json:"confidenceDistribution"`
}

type recordSource interface {
	ListAllByUser(ctx context.Context, userID string) ([]extractions.Extraction, error)
}

// Service computes analytics reports from the aggregate store and the raw
// extraction history. A redis client is optional; when present, reports are
// cached briefly per user.
type Service struct {
	Aggregates *aggregates.Service
	Records    recordSource
	Cache      *redis.Client

	// now is swappable in tests.
	now func() time.Time
}

// NewService constructs a Service. cache may be nil.
func NewService(agg *aggregates.Service, records recordSource, cache *redis.Client) *Service {
	return &Service{
		Aggregates: agg,
		Records:    records,
		Cache:      cache,
		now:        time.Now,
	}
}

// Report builds the analytics payload for one user. Cache failures degrade
// to a fresh computation. A non-zero Range scopes the daily series and the
// distributions to that window (the lifetime aggregate is unaffected) and
// bypasses the cache.
func (s *Service) Report(ctx context.Context, userID string, r Range) (Report, error) {
	cacheKey := "analytics:" + userID
	if r.isZero() {
		if cached, ok := s.fromCache(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	agg, err := s.Aggregates.Get(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("load aggregate: %w", err)
	}
	records, err := s.Records.ListAllByUser(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("load history: %w", err)
	}

	start, end := s.window(r)
	scoped := records
	if !r.isZero() {
		scoped = filterByDay(records, start, end)
	}

	report := Report{
		UserAnalytics:          agg,
		DailyExtractions:       dailyCounts(scoped, start, end),
		FileTypeDistribution:   fileTypeCounts(scoped),
		ConfidenceDistribution: confidenceBuckets(scoped),
	}
	if r.isZero() {
		s.toCache(ctx, cacheKey, report)
	}
	return report, nil
}

// window resolves the report's inclusive day bounds.
func (s *Service) window(r Range) (time.Time, time.Time) {
	if r.isZero() {
		today := s.now().UTC().Truncate(24 * time.Hour)
		return today.AddDate(0, 0, -(dailyWindowDays - 1)), today
	}
	return r.Start.UTC().Truncate(24 * time.Hour), r.End.UTC().Truncate(24 * time.Hour)
}

func filterByDay(records []extractions.Extraction, start, end time.Time) []extractions.Extraction {
	out := make([]extractions.Extraction, 0, len(records))
	for _, ex := range records {
		day := ex.CreatedAt.UTC().Truncate(24 * time.Hour)
		if day.Before(start) || day.After(end) {
			continue
		}
		out = append(out, ex)
	}
	return out
}

func (s *Service) fromCache(ctx context.Context, key string) (Report, bool) {
	if s.Cache == nil {
		return Report{}, false
	}
	data, err := s.Cache.Get(ctx, key).Bytes()
	if err != nil {
		return Report{}, false
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, false
	}
	return report, true
}

func (s *Service) toCache(ctx context.Context, key string, report Report) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		telemetry.Error("analytics.cache.set.failed", map[string]any{"key": key, "err": err.Error()})
	}
}

// dailyCounts returns one entry per day between start and end inclusive,
// oldest first, zero-filled for days without activity.
func dailyCounts(records []extractions.Extraction, start, end time.Time) []DailyCount {
	byDay := make(map[string]int)
	for _, ex := range records {
		day := ex.CreatedAt.UTC().Truncate(24 * time.Hour)
		if day.Before(start) || day.After(end) {
			continue
		}
		byDay[day.Format(time.DateOnly)]++
	}

	out := make([]DailyCount, 0, dailyWindowDays)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(time.DateOnly)
		out = append(out, DailyCount{Date: date, Count: byDay[date]})
	}
	return out
}

func fileTypeCounts(records []extractions.Extraction) []FileTypeCount {
	byType := make(map[string]int)
	for _, ex := range records {
		byType[ex.FileType]++
	}
	out := make([]FileTypeCount, 0, len(byType))
	for fileType, count := range byType {
		out = append(out, FileTypeCount{FileType: fileType, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FileType < out[j].FileType
	})
	return out
}

func confidenceBuckets(records []extractions.Extraction) []ConfidenceBucket {
	buckets := []ConfidenceBucket{
		{Label: "High"},
		{Label: "Medium"},
		{Label: "Low"},
	}
	for _, ex := range records {
		switch {
		case ex.ConfidenceScore >= 0.8:
			buckets[0].Count++
		case ex.ConfidenceScore >= 0.6:
			buckets[1].Count++
		default:
			buckets[2].Count++
		}
	}
	return buckets
}
