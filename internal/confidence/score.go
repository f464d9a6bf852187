// Package confidence estimates extraction quality from surface features of
// the recovered text. The scores are heuristic: they reward length,
// sentence punctuation, digits and structural characters, and never claim
// certainty (image results cap at 0.98, document results at 0.95). Where a
// real engine signal exists (Tesseract word confidences) the OCR path
// prefers it and only falls back to these functions.
package confidence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	shortTextScore = 0.3
	imageCap       = 0.98
	documentCap    = 0.95
)

// ScoreImage scores text recovered from an image or other general source.
func ScoreImage(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 10 {
		return shortTextScore
	}

	score := 0.5
	if wordCount(trimmed) > 20 {
		score += 0.2
	}
	if hasSentencePunctuation(trimmed) {
		score += 0.15
	}
	if hasDigit(trimmed) {
		score += 0.1
	}
	if specialCharCount(trimmed) > 5 {
		score += 0.05
	}
	return min(score, imageCap)
}

// ScoreDocument scores text recovered from a structured document. The
// source MIME type raises the baseline for formats that preserve text
// natively (PDF, plain text).
func ScoreDocument(text, mimeType string) float64 {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < 10 {
		return shortTextScore
	}

	score := 0.6
	if wordCount(trimmed) > 50 {
		score += 0.15
	}
	if hasSentencePunctuation(trimmed) {
		score += 0.1
	}
	if hasDigit(trimmed) {
		score += 0.05
	}
	if strings.ContainsAny(trimmed, ":-|") {
		score += 0.05
	}
	switch {
	case mimeType == "application/pdf":
		score += 0.1
	case strings.HasPrefix(mimeType, "text/"):
		score += 0.2
	}
	return min(score, documentCap)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func hasSentencePunctuation(s string) bool {
	return strings.ContainsAny(s, ".!?")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func specialCharCount(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		count++
	}
	return count
}
