package openai

import (
	"fmt"
	"strings"
)

const imagePrompt = `Extract all text visible in this image. Return the text exactly as it appears, preserving line breaks and reading order. Do not add commentary, descriptions, or explanations. If no text is visible, return an empty response.`

const tersePrompt = `Return the readable text from this content. Text only, no commentary.`

// documentPrompt builds a type-specific instruction for verbatim extraction
// with structure preserved.
func documentPrompt(mimeType, fileName string) string {
	switch {
	case mimeType == "application/pdf":
		return fmt.Sprintf("The following is a base64-encoded PDF file named %q. Extract all text content verbatim, preserving headings, paragraphs, and table structure. Return only the extracted text with no commentary.", fileName)
	case strings.Contains(mimeType, "word") || strings.Contains(mimeType, "officedocument"):
		return fmt.Sprintf("The following is a base64-encoded word-processor document named %q. Extract all text content verbatim, preserving the document structure. Return only the extracted text with no commentary.", fileName)
	default:
		return fmt.Sprintf("The following is a base64-encoded file named %q of type %s. Extract any readable text verbatim, preserving structure. Return only the extracted text with no commentary.", fileName, mimeType)
	}
}

// enhancePrompt builds the cleanup instruction for previously extracted text.
func enhancePrompt(contextHint string) string {
	var b strings.Builder
	b.WriteString("Correct OCR artifacts, broken words, and formatting errors in the following text. Preserve the original structure, line breaks, and meaning. Return only the corrected text with no commentary.")
	if hint := strings.TrimSpace(contextHint); hint != "" {
		b.WriteString("\nContext: ")
		b.WriteString(hint)
	}
	return b.String()
}
