package extractions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docutext-backend/internal/aggregates"
	"docutext-backend/internal/ocr"
	"docutext-backend/internal/shared/metrics"
	"docutext-backend/internal/shared/storage/object"
	"docutext-backend/internal/shared/telemetry"
)

// MaxFileBytes is the per-file upload bound.
const MaxFileBytes = 10 << 20 // 10 MiB

// Extractor turns a file payload into text plus a confidence score. Both
// the AI-backed client and the local OCR engine satisfy it through
// adapters.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, fileName string) (text string, confidence float64, err error)
}

// ExtractorFactory builds an Extractor for a per-request credential
// override. An empty key means "use the default extractor".
type ExtractorFactory func(apiKey string) (Extractor, error)

// Enhancer cleans up extracted text. Implementations degrade rather than
// fail: enhancement is optional polish.
type Enhancer interface {
	Enhance(ctx context.Context, text, hint string) (text2 string, confidence float64, err error)
}

// FileInput is one file submitted for extraction.
type FileInput struct {
	FileName string
	MimeType string
	Data     []byte
}

// Outcome is the per-file result of a batch. Exactly one of Extraction or
// Err is meaningful; a failed file never aborts its siblings.
type Outcome struct {
	FileName   string
	Extraction Extraction
	Persisted  bool
	Err        error
}

// BatchOptions tune one ProcessBatch call.
type BatchOptions struct {
	// Enhance runs the optional cleanup pass over each successful result.
	Enhance bool
	// APIKey overrides the configured extraction credential for this batch.
	APIKey string
}

// Service orchestrates the extraction workflow: validate, extract, enhance
// on request, persist, update the aggregate.
type Service struct {
	Repo         Repo
	Store        object.ObjectStore
	Extractor    Extractor
	ExtractorFor ExtractorFactory
	Enhancer     Enhancer
	Aggregates   *aggregates.Service
}

// ProcessBatch runs the workflow over a batch sequentially, yielding one
// outcome per input file in submission order. The whole batch is rejected
// up front when it is empty or any file exceeds the size bound; after that,
// failures are isolated per file. Persistence and aggregate updates are
// best effort and never mask an extracted result.
func (s *Service) ProcessBatch(ctx context.Context, userID string, files []FileInput, opts BatchOptions) ([]Outcome, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files supplied", ErrInvalidInput)
	}
	for _, f := range files {
		if int64(len(f.Data)) > MaxFileBytes {
			return nil, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, f.FileName, len(f.Data))
		}
	}

	extractor := s.Extractor
	if opts.APIKey != "" && s.ExtractorFor != nil {
		custom, err := s.ExtractorFor(opts.APIKey)
		if err != nil {
			return nil, err
		}
		extractor = custom
	}

	outcomes := make([]Outcome, 0, len(files))
	for _, f := range files {
		outcomes = append(outcomes, s.processOne(ctx, userID, f, extractor, opts.Enhance))
	}
	return outcomes, nil
}

func (s *Service) processOne(ctx context.Context, userID string, f FileInput, extractor Extractor, enhance bool) Outcome {
	outcome := Outcome{FileName: f.FileName}
	start := time.Now()
	metrics.IncExtractionStarted()

	mimeType := ocr.NormalizeMimeType(f.MimeType, f.FileName, f.Data)
	if !acceptedType(mimeType) {
		metrics.IncExtractionFailed()
		outcome.Err = fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
		return outcome
	}

	text, conf, err := extractor.Extract(ctx, f.Data, mimeType, f.FileName)
	if err != nil {
		metrics.IncExtractionFailed()
		metrics.ObserveExtractionDurationMs(float64(time.Since(start).Milliseconds()))
		outcome.Err = err
		return outcome
	}
	metrics.IncExtractionCompleted()
	metrics.ObserveExtractionDurationMs(float64(time.Since(start).Milliseconds()))

	if enhance && s.Enhancer != nil {
		enhanced, enhancedConf, err := s.Enhancer.Enhance(ctx, text, "extracted from "+f.FileName)
		if err != nil {
			telemetry.Error("extraction.enhance.failed", map[string]any{
				"user_id":   userID,
				"file_name": f.FileName,
				"err":       err.Error(),
			})
		} else {
			text = enhanced
			conf = enhancedConf
		}
	}

	now := time.Now().UTC()
	ex := Extraction{
		ID:               uuid.NewString(),
		UserID:           userID,
		FileName:         f.FileName,
		FileType:         mimeType,
		FileSizeBytes:    int64(len(f.Data)),
		ExtractedText:    text,
		ConfidenceScore:  conf,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		StorageKey:       s.storeFile(ctx, userID, f, text),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	outcome.Extraction = ex

	if err := s.Repo.Create(ctx, ex); err != nil {
		telemetry.Error("extraction.persist.failed", map[string]any{
			"user_id":       userID,
			"extraction_id": ex.ID,
			"err":           err.Error(),
		})
		return outcome
	}
	outcome.Persisted = true

	if _, err := s.Aggregates.OnExtractionCreated(ctx, userID, len(text), conf); err != nil {
		telemetry.Error("extraction.aggregate.failed", map[string]any{
			"user_id":       userID,
			"extraction_id": ex.ID,
			"err":           err.Error(),
		})
	}
	return outcome
}

// storeFile keeps a copy of the original upload plus a derived plain-text
// sibling. Both writes are best effort; an empty key means storage was
// skipped or failed.
func (s *Service) storeFile(ctx context.Context, userID string, f FileInput, text string) string {
	if s.Store == nil {
		return ""
	}
	storageKey, _, _, err := s.Store.Save(ctx, userID, f.FileName, bytes.NewReader(f.Data))
	if err != nil {
		telemetry.Error("extraction.store.failed", map[string]any{
			"user_id":   userID,
			"file_name": f.FileName,
			"err":       err.Error(),
		})
		return ""
	}
	if saver, ok := s.Store.(object.KeySaver); ok {
		key := storageKey + ".extracted.txt"
		if _, err := saver.SaveWithKey(ctx, key, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
			telemetry.Error("extraction.store.derived.failed", map[string]any{
				"user_id": userID,
				"key":     key,
				"err":     err.Error(),
			})
		}
	}
	return storageKey
}

// Get returns one owned record.
func (s *Service) Get(ctx context.Context, userID, id string) (Extraction, error) {
	if userID == "" || id == "" {
		return Extraction{}, fmt.Errorf("%w: user id and extraction id required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns one page of a user's records plus the total match count.
func (s *Service) List(ctx context.Context, userID string, q ListQuery) ([]Extraction, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, q)
}

// UpdateText applies a manual edit to an owned record and shifts the
// aggregate's cumulative text length by the difference.
func (s *Service) UpdateText(ctx context.Context, userID, id, text string) (Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return Extraction{}, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	existing, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return Extraction{}, err
	}

	now := time.Now().UTC()
	if err := s.Repo.UpdateText(ctx, userID, id, text, existing.ConfidenceScore, now); err != nil {
		return Extraction{}, err
	}

	delta := len(text) - len(existing.ExtractedText)
	if err := s.Aggregates.OnTextEdited(ctx, userID, delta); err != nil {
		telemetry.Error("extraction.aggregate.edit.failed", map[string]any{
			"user_id":       userID,
			"extraction_id": id,
			"err":           err.Error(),
		})
	}

	existing.ExtractedText = text
	existing.UpdatedAt = now
	return existing, nil
}

// Enhance runs the cleanup pass over a stored record and persists the
// result. Degrade policy lives in the Enhancer; a missing Enhancer is a
// configuration problem surfaced to the caller.
func (s *Service) Enhance(ctx context.Context, userID, id string) (Extraction, error) {
	if s.Enhancer == nil {
		return Extraction{}, errors.New("enhancement is not configured")
	}
	existing, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return Extraction{}, err
	}

	text, conf, err := s.Enhancer.Enhance(ctx, existing.ExtractedText, "extracted from "+existing.FileName)
	if err != nil {
		return Extraction{}, err
	}
	// A degraded pass hands the text back unchanged; keep the stored
	// record (and its confidence) as it was.
	if text == existing.ExtractedText {
		return existing, nil
	}

	now := time.Now().UTC()
	if err := s.Repo.UpdateText(ctx, userID, id, text, conf, now); err != nil {
		return Extraction{}, err
	}
	delta := len(text) - len(existing.ExtractedText)
	if err := s.Aggregates.OnTextEdited(ctx, userID, delta); err != nil {
		telemetry.Error("extraction.aggregate.edit.failed", map[string]any{
			"user_id":       userID,
			"extraction_id": id,
			"err":           err.Error(),
		})
	}

	existing.ExtractedText = text
	existing.ConfidenceScore = conf
	existing.UpdatedAt = now
	return existing, nil
}

// Delete removes an owned record and unwinds it from the aggregate.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.SoftDelete(ctx, userID, id, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := s.Aggregates.OnExtractionDeleted(ctx, userID, len(existing.ExtractedText)); err != nil {
		telemetry.Error("extraction.aggregate.delete.failed", map[string]any{
			"user_id":       userID,
			"extraction_id": id,
			"err":           err.Error(),
		})
	}
	return nil
}

func acceptedType(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return true
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/pdf":
		return true
	case mimeType == "application/msword":
		return true
	case strings.Contains(mimeType, "wordprocessingml"):
		return true
	default:
		return false
	}
}
