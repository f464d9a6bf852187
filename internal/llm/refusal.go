package llm

import "strings"

// Markers that show up when a generative provider declines the task instead
// of returning extracted content. A substring match is deliberately cheap:
// false positives on legitimate text (an invoice containing "cannot") are an
// accepted tradeoff.
var refusalMarkers = []string{
	"sorry",
	"cannot",
	"unable",
	"not able",
	"can't",
	"base64",
	"decoder",
	"as an ai",
	"i'm sorry",
}

// IsRefusal reports whether text looks like a conversational refusal rather
// than extracted content.
func IsRefusal(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range refusalMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
