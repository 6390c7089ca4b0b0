/**
 * OCR Adapter
 *
 * Wraps an Engine with the soft-failure contract the extraction engine
 * depends on: a recognition error or empty output yields an empty Document
 * (empty text, no tokens, avg confidence 0) instead of an error, so field
 * extraction degrades to soft misses rather than aborting the pipeline.
 *
 * The adapter also applies the caller's confidence threshold and maps word
 * coordinates back to the original image when preprocessing has upscaled it.
 */

package ocr

import (
	"context"
	"image"
	"log"
	"math"
	"strings"
)

// Adapter converts raw engine recognitions into filtered Documents.
type Adapter struct {
	engine Engine
}

// NewAdapter creates an adapter around the given engine.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// Recognize runs the engine and builds a Document. Tokens with confidence at
// or below threshold (0-100) are dropped. scale is the cumulative linear
// scale factor preprocessing applied to the image; token boxes are divided by
// it so callers always see original-image pixel coordinates.
func (a *Adapter) Recognize(ctx context.Context, img image.Image, threshold int, scale float64) *Document {
	if scale <= 0 {
		scale = 1
	}

	rec, err := a.engine.Recognize(ctx, img)
	if err != nil {
		log.Printf("OCR recognition failed, returning empty document: %v", err)
		return &Document{Tokens: []Token{}}
	}

	tokens := make([]Token, 0, len(rec.Words))
	var confSum float64
	for _, w := range rec.Words {
		text := strings.TrimSpace(w.Text)
		conf := int(w.Confidence)
		if text == "" || conf <= threshold {
			continue
		}
		tokens = append(tokens, Token{
			Text:       text,
			Box:        unscaleBox(w.Box, scale),
			Confidence: conf,
		})
		confSum += float64(conf)
	}

	doc := &Document{
		RawText:   rec.Text,
		Tokens:    tokens,
		WordCount: len(tokens),
	}
	if len(tokens) > 0 {
		doc.AvgConfidence = confSum / float64(len(tokens))
	}

	return doc
}

// unscaleBox maps box coordinates from preprocessed-image pixels back to
// original-image pixels.
func unscaleBox(b Box, scale float64) Box {
	if scale == 1 {
		return b
	}
	return Box{
		X1: int(math.Round(float64(b.X1) / scale)),
		Y1: int(math.Round(float64(b.Y1) / scale)),
		X2: int(math.Round(float64(b.X2) / scale)),
		Y2: int(math.Round(float64(b.Y2) / scale)),
	}
}
