/**
 * Vendor Extraction
 *
 * The vendor name is assumed to sit near the top of a receipt, so only the
 * first lines are considered. Candidates are filtered by a stop-word set and
 * shape checks, then scored by position, length and OCR confidence.
 */

package extract

import (
	"math"
	"strings"

	"github.com/docintel/extraction-worker/internal/ocr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// vendorStopWords disqualify a line as a vendor candidate when any appears
// as a substring: document-type words, field labels and payment brands.
var vendorStopWords = []string{
	"receipt", "invoice", "bill", "statement", "order", "purchase", "sale",
	"date", "time", "total", "tax", "subtotal", "amount", "due", "paid",
	"cash", "credit", "card", "visa", "mastercard", "amex", "discover",
}

const (
	maxVendorLines  = 10
	minVendorLength = 3
	maxVendorLength = 100

	// Score weights: position near the top, reasonable length, OCR
	// confidence. Empirically chosen, tunable.
	positionWeight = 0.4
	lengthWeight   = 0.2
	ocrWeight      = 0.4
)

// extractVendor scores the candidate lines in the top of the document and
// returns the best one, title-cased.
func (e *Engine) extractVendor(doc *ocr.Document) VendorField {
	lines := strings.Split(doc.RawText, "\n")
	topLines := len(lines)
	if topLines > maxVendorLines {
		topLines = maxVendorLines
	}

	// Casers are stateful; one per call keeps the engine goroutine-safe.
	titleCaser := cases.Title(language.English)

	best := VendorField{}
	for i := 0; i < topLines; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || !isVendorCandidate(line) {
			continue
		}

		positionScore := float64(maxVendorLines-i) / float64(maxVendorLines)
		lengthScore := math.Min(float64(len(line))/50, 1)
		ocrConfidence := FieldConfidence(line, doc.Tokens)

		score := positionScore*positionWeight + lengthScore*lengthWeight + ocrConfidence*ocrWeight

		if best.Name == "" || score > best.Confidence {
			best = VendorField{
				Name:       titleCaser.String(line),
				Confidence: score,
				Box:        FindBox(line, doc.Tokens),
				RawText:    line,
			}
		}
	}
	return best
}

// isVendorCandidate rejects lines containing stop words, lines that are
// mostly digits, and lines of implausible length.
func isVendorCandidate(line string) bool {
	lower := strings.ToLower(line)
	for _, stop := range vendorStopWords {
		if strings.Contains(lower, stop) {
			return false
		}
	}

	digits := 0
	for i := 0; i < len(line); i++ {
		if line[i] >= '0' && line[i] <= '9' {
			digits++
		}
	}
	if float64(digits) > float64(len(line))*0.5 {
		return false
	}

	if len(line) < minVendorLength || len(line) > maxVendorLength {
		return false
	}
	return true
}
