/**
 * Tesseract OCR Engine
 *
 * Local Tesseract recognition via gosseract. Word-level boxes and confidences
 * come from GetBoundingBoxes at RIL_WORD granularity; the raw text blob comes
 * from a separate Text call so line structure is preserved for the
 * keyword-based extractors.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine produces raw recognition output for a single image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (Recognition, error)
}

// TesseractEngine implements Engine using the gosseract client.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine creates a Tesseract-backed engine. With no languages the
// tessdata default (eng) is used.
func NewTesseractEngine(languages ...string) *TesseractEngine {
	return &TesseractEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize performs OCR on the given image.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	select {
	case <-ctx.Done():
		return Recognition{}, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Recognition{}, fmt.Errorf("failed to encode image: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Recognition{}, fmt.Errorf("failed to set image: %w", err)
	}

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return Recognition{}, fmt.Errorf("failed to set languages: %w", err)
		}
	}

	text, err := client.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Recognition{}, fmt.Errorf("failed to get word boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, Word{
			Text: b.Word,
			Box: Box{
				X1: b.Box.Min.X,
				Y1: b.Box.Min.Y,
				X2: b.Box.Max.X,
				Y2: b.Box.Max.Y,
			},
			Confidence: b.Confidence,
		})
	}

	return Recognition{Text: text, Words: words}, nil
}
