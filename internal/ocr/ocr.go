// Package ocr implements the local, non-AI extraction path: Tesseract for
// images, per-page text for PDFs, passthrough for plain text, and a DOCX
// strip carried over from the document tooling. The engine is an explicitly
// owned resource: construct it once, Close it on shutdown.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"docutext-backend/internal/confidence"
)

// ErrUnsupportedType signals a MIME type the local path cannot handle.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrNoText signals that no readable text was recovered.
var ErrNoText = errors.New("no text recognized")

// ErrEngineClosed signals use after Close.
var ErrEngineClosed = errors.New("ocr engine is closed")

const plainTextConfidence = 0.99

// Result is the outcome of one local extraction.
type Result struct {
	Text       string
	Confidence float64
}

// Engine runs local OCR. A fresh gosseract client is created per call, so
// concurrent callers never share Tesseract state; Close only marks the
// engine torn down.
type Engine struct {
	mu        sync.Mutex
	closed    bool
	newClient func() *gosseract.Client
	languages []string
}

// NewEngine constructs a local OCR engine.
func NewEngine(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{
		newClient: gosseract.NewClient,
		languages: languages,
	}
}

// Close tears the engine down. Further Extract calls fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Extract dispatches on MIME type: images through Tesseract, PDFs page by
// page with per-page confidences averaged, plain text read directly with a
// fixed high confidence, DOCX through the zip/xml strip.
func (e *Engine) Extract(ctx context.Context, data []byte, mimeType, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return Result{}, ErrEngineClosed
	}

	normalized := NormalizeMimeType(mimeType, fileName, data)
	switch {
	case strings.HasPrefix(normalized, "image/"):
		return e.extractImage(ctx, data)
	case normalized == mimePDF:
		return extractPDF(data)
	case strings.HasPrefix(normalized, "text/"):
		text := string(data)
		if strings.TrimSpace(text) == "" {
			return Result{}, ErrNoText
		}
		return Result{Text: text, Confidence: plainTextConfidence}, nil
	case normalized == mimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return Result{}, err
		}
		if strings.TrimSpace(text) == "" {
			return Result{}, ErrNoText
		}
		return Result{Text: text, Confidence: confidence.ScoreDocument(text, normalized)}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, normalized)
	}
}
