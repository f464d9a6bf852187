package analytics

import (
	"context"
	"testing"
	"time"

	"docutext-backend/internal/aggregates"
	"docutext-backend/internal/extractions"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
}

func newTestService(repo *extractions.MemoryRepo) *Service {
	svc := NewService(aggregates.NewService(aggregates.NewMemoryStore(repo)), repo, nil)
	svc.now = fixedNow
	return svc
}

func seed(t *testing.T, repo *extractions.MemoryRepo, id, fileType string, confidence float64, createdAt time.Time) {
	t.Helper()
	err := repo.Create(context.Background(), extractions.Extraction{
		ID:              id,
		UserID:          "user-1",
		FileName:        id + ".bin",
		FileType:        fileType,
		ExtractedText:   "text",
		ConfidenceScore: confidence,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestReportConfidenceBuckets(t *testing.T) {
	repo := extractions.NewMemoryRepo()
	now := fixedNow()
	seed(t, repo, "a", "image/png", 0.95, now)
	seed(t, repo, "b", "image/png", 0.80, now)
	seed(t, repo, "c", "application/pdf", 0.79, now)
	seed(t, repo, "d", "application/pdf", 0.60, now)
	seed(t, repo, "e", "text/plain", 0.59, now)

	report, err := newTestService(repo).Report(context.Background(), "user-1", Range{})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	buckets := report.ConfidenceDistribution
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	want := map[string]int{"High": 2, "Medium": 2, "Low": 1}
	for _, b := range buckets {
		if b.Count != want[b.Label] {
			t.Errorf("bucket %s = %d, want %d", b.Label, b.Count, want[b.Label])
		}
	}
}

func TestReportDailyWindow(t *testing.T) {
	repo := extractions.NewMemoryRepo()
	now := fixedNow()
	seed(t, repo, "today-1", "image/png", 0.9, now)
	seed(t, repo, "today-2", "image/png", 0.9, now.Add(-2*time.Hour))
	seed(t, repo, "threedays", "image/png", 0.9, now.AddDate(0, 0, -3))
	seed(t, repo, "ancient", "image/png", 0.9, now.AddDate(0, 0, -30))

	report, err := newTestService(repo).Report(context.Background(), "user-1", Range{})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	daily := report.DailyExtractions
	if len(daily) != 7 {
		t.Fatalf("expected 7 days, got %d", len(daily))
	}
	if daily[0].Date != "2025-03-04" || daily[6].Date != "2025-03-10" {
		t.Errorf("window = %s..%s, want 2025-03-04..2025-03-10", daily[0].Date, daily[6].Date)
	}
	if daily[6].Count != 2 {
		t.Errorf("today count = %d, want 2", daily[6].Count)
	}
	if daily[3].Count != 1 {
		t.Errorf("three-days-ago count = %d, want 1", daily[3].Count)
	}
	total := 0
	for _, d := range daily {
		total += d.Count
	}
	if total != 3 {
		t.Errorf("window total = %d, want 3 (record outside window must not count)", total)
	}
}

func TestReportFileTypeDistribution(t *testing.T) {
	repo := extractions.NewMemoryRepo()
	now := fixedNow()
	seed(t, repo, "a", "image/png", 0.9, now)
	seed(t, repo, "b", "image/png", 0.9, now)
	seed(t, repo, "c", "application/pdf", 0.9, now)

	report, err := newTestService(repo).Report(context.Background(), "user-1", Range{})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	dist := report.FileTypeDistribution
	if len(dist) != 2 {
		t.Fatalf("expected 2 types, got %d", len(dist))
	}
	if dist[0].FileType != "image/png" || dist[0].Count != 2 {
		t.Errorf("top type = %+v, want image/png x2", dist[0])
	}
	if dist[1].FileType != "application/pdf" || dist[1].Count != 1 {
		t.Errorf("second type = %+v, want application/pdf x1", dist[1])
	}
}

func TestReportCustomRange(t *testing.T) {
	repo := extractions.NewMemoryRepo()
	now := fixedNow()
	seed(t, repo, "inside", "image/png", 0.9, now.AddDate(0, 0, -10))
	seed(t, repo, "edge", "application/pdf", 0.5, now.AddDate(0, 0, -12))
	seed(t, repo, "outside", "image/png", 0.9, now)

	r := Range{
		Start: time.Date(2025, 2, 26, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
	}
	report, err := newTestService(repo).Report(context.Background(), "user-1", r)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	daily := report.DailyExtractions
	if len(daily) != 3 {
		t.Fatalf("expected 3 days, got %d", len(daily))
	}
	if daily[0].Date != "2025-02-26" || daily[2].Date != "2025-02-28" {
		t.Errorf("window = %s..%s, want 2025-02-26..2025-02-28", daily[0].Date, daily[2].Date)
	}
	total := 0
	for _, d := range daily {
		total += d.Count
	}
	if total != 2 {
		t.Errorf("window total = %d, want 2 (today's record is outside the range)", total)
	}

	// Distributions are scoped to the range too.
	if len(report.FileTypeDistribution) != 2 {
		t.Fatalf("expected 2 types in range, got %d", len(report.FileTypeDistribution))
	}
	for _, b := range report.ConfidenceDistribution {
		switch b.Label {
		case "High":
			if b.Count != 1 {
				t.Errorf("High = %d, want 1", b.Count)
			}
		case "Low":
			if b.Count != 1 {
				t.Errorf("Low = %d, want 1", b.Count)
			}
		}
	}
}

func TestReportEmptyUser(t *testing.T) {
	repo := extractions.NewMemoryRepo()

	report, err := newTestService(repo).Report(context.Background(), "user-1", Range{})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.UserAnalytics.TotalExtractions != 0 {
		t.Errorf("total = %d, want 0", report.UserAnalytics.TotalExtractions)
	}
	if len(report.DailyExtractions) != 7 {
		t.Errorf("daily entries = %d, want 7", len(report.DailyExtractions))
	}
	for _, b := range report.ConfidenceDistribution {
		if b.Count != 0 {
			t.Errorf("bucket %s = %d, want 0", b.Label, b.Count)
		}
	}
}
