/**
 * OCR Types - Shared data structures for recognition output
 *
 * Common types consumed by the field-extraction engine and produced by the
 * OCR adapter. A Document is built once per processed image and is immutable
 * afterwards; extractors only ever read it.
 */

package ocr

// Box represents word coordinates as (x1, y1, x2, y2) in pixels of the
// original image. The adapter maps coordinates back when preprocessing has
// upscaled the image.
type Box struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Token represents a single recognized word with its bounding box and a
// 0-100 confidence score.
type Token struct {
	Text       string
	Box        Box
	Confidence int
}

// Document represents the complete OCR output for one image.
type Document struct {
	RawText       string
	Tokens        []Token
	WordCount     int
	AvgConfidence float64 // mean token confidence on the 0-100 scale, 0 when no tokens
}

// Word is a raw engine-level word before threshold filtering and coordinate
// mapping. Confidence is on the engine's native 0-100 scale.
type Word struct {
	Text       string
	Box        Box
	Confidence float64
}

// Recognition is the unfiltered output of an OCR engine.
type Recognition struct {
	Text  string
	Words []Word
}
