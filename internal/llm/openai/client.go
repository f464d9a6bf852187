package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"docutext-backend/internal/confidence"
	"docutext-backend/internal/llm"
)

const (
	defaultAPIURL        = "https://api.openai.com/v1/chat/completions"
	defaultModel         = "gpt-4o"
	defaultFallbackModel = "gpt-4o-mini"

	// The refusal retry resends a truncated payload; long documents get cut
	// to keep the fallback call cheap.
	retryPayloadLimit = 4000

	// Confidence never exceeds this on the fallback-model retry path.
	retryConfidenceCap = 0.7
)

// Client implements llm.Client using the OpenAI Chat Completions API.
type Client struct {
	apiKey        string
	model         string
	fallbackModel string
	apiURL        string
	httpClient    *http.Client
}

// NewClient constructs an OpenAI-backed extraction client. The API key is
// required; empty model names fall back to defaults.
func NewClient(apiKey, model, fallbackModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required", llm.ErrConfiguration)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	if strings.TrimSpace(fallbackModel) == "" {
		fallbackModel = defaultFallbackModel
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:        apiKey,
		model:         model,
		fallbackModel: fallbackModel,
		apiURL:        defaultAPIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ExtractFromImage sends the image as a data URL to a vision-capable model
// and scores the returned text with the image heuristic.
func (c *Client) ExtractFromImage(ctx context.Context, image []byte, mimeType string) (llm.Extraction, error) {
	if len(image) == 0 {
		return llm.Extraction{}, fmt.Errorf("%w: empty image payload", llm.ErrExtraction)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	messages := []chatMessage{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: imagePrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}}

	text, err := c.chat(ctx, c.model, messages)
	if err != nil {
		return llm.Extraction{}, err
	}
	if strings.TrimSpace(text) == "" {
		return llm.Extraction{}, llm.ErrExtraction
	}
	return llm.Extraction{Text: text, Confidence: confidence.ScoreImage(text)}, nil
}

// ExtractFromDocument embeds the document payload base64 into a
// type-specific prompt. A detected refusal triggers one retry with a terse,
// truncated prompt on the cheaper fallback model; that path is best effort
// and its confidence is capped.
func (c *Client) ExtractFromDocument(ctx context.Context, data []byte, mimeType, fileName string) (llm.Extraction, error) {
	payload := base64.StdEncoding.EncodeToString(data)
	messages := []chatMessage{{
		Role:    "user",
		Content: documentPrompt(mimeType, fileName) + "\n\n" + payload,
	}}

	text, err := c.chat(ctx, c.model, messages)
	if err != nil {
		return llm.Extraction{}, err
	}

	capped := false
	if llm.IsRefusal(text) {
		truncated := payload
		if len(truncated) > retryPayloadLimit {
			truncated = truncated[:retryPayloadLimit]
		}
		retryMessages := []chatMessage{{
			Role:    "user",
			Content: tersePrompt + "\n\n" + truncated,
		}}
		retryText, retryErr := c.chat(ctx, c.fallbackModel, retryMessages)
		if retryErr == nil && strings.TrimSpace(retryText) != "" && !llm.IsRefusal(retryText) {
			text = retryText
			capped = true
		}
	}

	if strings.TrimSpace(text) == "" || llm.IsRefusal(text) {
		return llm.Extraction{}, llm.ErrExtraction
	}

	score := confidence.ScoreDocument(text, mimeType)
	if capped && score > retryConfidenceCap {
		score = retryConfidenceCap
	}
	return llm.Extraction{Text: text, Confidence: score}, nil
}

// Enhance asks the model to clean up extracted text. Failures degrade:
// enhancement is optional polish and never blocks the primary result.
func (c *Client) Enhance(ctx context.Context, text, contextHint string) (llm.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return llm.Extraction{}, llm.ErrEmptyText
	}

	messages := []chatMessage{
		{Role: "system", Content: enhancePrompt(contextHint)},
		{Role: "user", Content: text},
	}

	enhanced, err := c.chat(ctx, c.model, messages)
	if err != nil {
		return llm.Extraction{Text: text, Confidence: 0.7}, nil
	}
	if strings.TrimSpace(enhanced) == "" || llm.IsRefusal(enhanced) {
		return llm.Extraction{Text: text, Confidence: 0.8}, nil
	}
	return llm.Extraction{Text: enhanced, Confidence: 0.95}, nil
}

func (c *Client) chat(ctx context.Context, model string, messages []chatMessage) (string, error) {
	temp := float32(0)
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: &temp,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: %s", llm.ErrExternalService, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s (%s)", llm.ErrExternalService, parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

var _ llm.Client = (*Client)(nil)
