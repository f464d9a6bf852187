package llm

import (
	"context"
	"errors"
)

// Extraction is the outcome of a single extraction or enhancement call.
type Extraction struct {
	Text       string
	Confidence float64
}

// Client abstracts the generative extraction provider.
type Client interface {
	// ExtractFromImage returns verbatim text recovered from an image payload.
	ExtractFromImage(ctx context.Context, image []byte, mimeType string) (Extraction, error)
	// ExtractFromDocument returns verbatim text recovered from a document
	// payload, retrying once on a detected refusal.
	ExtractFromDocument(ctx context.Context, data []byte, mimeType, fileName string) (Extraction, error)
	// Enhance cleans up previously extracted text. It degrades rather than
	// fails: transport errors and refusals return the original text with
	// reduced confidence.
	Enhance(ctx context.Context, text, contextHint string) (Extraction, error)
}

// ErrConfiguration signals missing or invalid provider credentials.
var ErrConfiguration = errors.New("llm credentials not configured")

// ErrExternalService signals a non-success response from the provider.
var ErrExternalService = errors.New("external service error")

// ErrExtraction signals that no usable text was produced after all attempts.
var ErrExtraction = errors.New("no text extracted")

// ErrEmptyText signals an empty input where text is required.
var ErrEmptyText = errors.New("text is empty")
