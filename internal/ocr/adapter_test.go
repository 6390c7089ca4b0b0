/**
 * OCR Adapter Tests
 *
 * Exercises the adapter's soft-failure contract, confidence threshold and
 * coordinate unscaling against a stub engine.
 */

package ocr

import (
	"context"
	"fmt"
	"image"
	"testing"
)

type stubEngine struct {
	rec Recognition
	err error
}

func (s stubEngine) Recognize(ctx context.Context, img image.Image) (Recognition, error) {
	return s.rec, s.err
}

func testImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 10, 10))
}

func TestRecognizeFiltersByThreshold(t *testing.T) {
	adapter := NewAdapter(stubEngine{rec: Recognition{
		Text: "TOTAL $5.00 smudge",
		Words: []Word{
			{Text: "TOTAL", Box: Box{X1: 0, Y1: 0, X2: 50, Y2: 20}, Confidence: 90},
			{Text: "$5.00", Box: Box{X1: 60, Y1: 0, X2: 110, Y2: 20}, Confidence: 31},
			{Text: "smudge", Box: Box{X1: 120, Y1: 0, X2: 170, Y2: 20}, Confidence: 30},
			{Text: "  ", Box: Box{X1: 180, Y1: 0, X2: 190, Y2: 20}, Confidence: 99},
		},
	}})

	doc := adapter.Recognize(context.Background(), testImage(), 30, 1)

	// Confidence must be strictly above the threshold; whitespace-only words
	// are dropped regardless.
	if doc.WordCount != 2 {
		t.Fatalf("word count = %d, want 2, tokens: %+v", doc.WordCount, doc.Tokens)
	}
	if doc.Tokens[0].Text != "TOTAL" || doc.Tokens[1].Text != "$5.00" {
		t.Errorf("kept tokens = %+v", doc.Tokens)
	}
	if doc.RawText != "TOTAL $5.00 smudge" {
		t.Errorf("raw text = %q, want the engine text untouched", doc.RawText)
	}
	if doc.AvgConfidence != 60.5 {
		t.Errorf("avg confidence = %v, want 60.5", doc.AvgConfidence)
	}
}

func TestRecognizeUnscalesBoxes(t *testing.T) {
	adapter := NewAdapter(stubEngine{rec: Recognition{
		Text: "WORD",
		Words: []Word{
			{Text: "WORD", Box: Box{X1: 20, Y1: 41, X2: 120, Y2: 81}, Confidence: 90},
		},
	}})

	doc := adapter.Recognize(context.Background(), testImage(), 0, 2)

	want := Box{X1: 10, Y1: 21, X2: 60, Y2: 41}
	if got := doc.Tokens[0].Box; got != want {
		t.Errorf("box = %+v, want %+v", got, want)
	}
}

func TestRecognizeScaleOneKeepsBoxes(t *testing.T) {
	box := Box{X1: 3, Y1: 5, X2: 7, Y2: 9}
	adapter := NewAdapter(stubEngine{rec: Recognition{
		Text:  "WORD",
		Words: []Word{{Text: "WORD", Box: box, Confidence: 90}},
	}})

	for _, scale := range []float64{1, 0, -2} {
		doc := adapter.Recognize(context.Background(), testImage(), 0, scale)
		if got := doc.Tokens[0].Box; got != box {
			t.Errorf("scale %v: box = %+v, want unchanged %+v", scale, got, box)
		}
	}
}

func TestRecognizeEngineErrorYieldsEmptyDocument(t *testing.T) {
	adapter := NewAdapter(stubEngine{err: fmt.Errorf("tesseract unavailable")})

	doc := adapter.Recognize(context.Background(), testImage(), 30, 1)

	if doc == nil {
		t.Fatal("document is nil, want empty document")
	}
	if doc.RawText != "" || doc.WordCount != 0 || doc.AvgConfidence != 0 {
		t.Errorf("document not empty: %+v", doc)
	}
	if doc.Tokens == nil {
		t.Error("tokens slice is nil, want empty slice")
	}
}

func TestRecognizeNoWordsAboveThreshold(t *testing.T) {
	adapter := NewAdapter(stubEngine{rec: Recognition{
		Text:  "noise",
		Words: []Word{{Text: "noise", Confidence: 10}},
	}})

	doc := adapter.Recognize(context.Background(), testImage(), 30, 1)

	if doc.WordCount != 0 || doc.AvgConfidence != 0 {
		t.Errorf("document = %+v, want zero tokens and zero average", doc)
	}
	if doc.RawText != "noise" {
		t.Errorf("raw text = %q, want preserved even when all words filtered", doc.RawText)
	}
}
