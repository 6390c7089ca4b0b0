/**
 * Confidence Fusion
 *
 * Locates a field's source bounding box among OCR tokens and normalizes a
 * confidence score from token-level evidence. Both are heuristic best-effort
 * matchers, not exact span alignment: a token counts as evidence for a word
 * when either string contains the other, case-insensitively.
 */

package extract

import (
	"strings"

	"github.com/docintel/extraction-worker/internal/ocr"
)

// defaultFieldConfidence is used when no token matches any word of the
// candidate: unknown but plausible, not absent.
const defaultFieldConfidence = 0.5

// FindBox returns the box of the first token whose lowercase text is a
// substring of, or a superset of, the target text. Nil when nothing matches.
func FindBox(text string, tokens []ocr.Token) *ocr.Box {
	target := strings.ToLower(strings.TrimSpace(text))
	if target == "" {
		return nil
	}

	for i := range tokens {
		word := strings.ToLower(tokens[i].Text)
		if strings.Contains(target, word) || strings.Contains(word, target) {
			box := tokens[i].Box
			return &box
		}
	}
	return nil
}

// FieldConfidence scores candidate text against the OCR tokens: for every
// word of the candidate, the confidences of all tokens with a substring
// relation (in either direction) are collected, and the mean is normalized
// from the 0-100 token scale to [0, 1].
func FieldConfidence(text string, tokens []ocr.Token) float64 {
	words := strings.Fields(strings.ToLower(text))

	var sum float64
	matches := 0
	for _, word := range words {
		for i := range tokens {
			tokenText := strings.ToLower(tokens[i].Text)
			if strings.Contains(tokenText, word) || strings.Contains(word, tokenText) {
				sum += float64(tokens[i].Confidence)
				matches++
			}
		}
	}

	if matches == 0 {
		return defaultFieldConfidence
	}
	return sum / float64(matches) / 100
}
