package ocr

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"docutext-backend/internal/confidence"
)

// extractImage runs Tesseract over the (preprocessed) image bytes. When the
// engine returns word boxes, their mean confidence is used directly; the
// text heuristic is only the fallback for the rare empty-box case.
func (e *Engine) extractImage(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	client := e.newClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return Result{}, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(preprocess(data)); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return Result{}, ErrNoText
	}

	score, ok := wordConfidence(client)
	if !ok {
		score = confidence.ScoreImage(text)
	}
	return Result{Text: text, Confidence: score}, nil
}

// wordConfidence averages Tesseract's per-word confidences, scaled to [0,1].
func wordConfidence(client *gosseract.Client) (float64, bool) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, false
	}
	var sum float64
	for _, box := range boxes {
		sum += box.Confidence / 100.0
	}
	return sum / float64(len(boxes)), true
}

// preprocess normalizes scans before recognition: grayscale plus a mild
// sharpen. Undecodable input is passed through untouched and left to
// Tesseract to reject.
func preprocess(data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	img = imaging.Grayscale(img)
	img = imaging.Sharpen(img, 0.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return data
	}
	return buf.Bytes()
}
