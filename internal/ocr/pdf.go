package ocr

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"docutext-backend/internal/confidence"
)

// extractPDF pulls text page by page and averages the per-page confidence
// scores. Pages without a text layer contribute nothing; a fully scanned
// PDF with no text layer surfaces as ErrNoText, in which case callers may
// fall back to the AI path.
func extractPDF(data []byte) (Result, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return Result{}, err
	}

	numPages := pdfReader.NumPage()
	var parts []string
	var confSum float64
	var scored int

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		parts = append(parts, pageText)
		confSum += confidence.ScoreDocument(pageText, mimePDF)
		scored++
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text, Confidence: confSum / float64(scored)}, nil
}
