/**
 * Amount Extraction and Validation
 *
 * Finds subtotal, tax and total amounts by line-based keyword search plus an
 * ordered list of currency-shape patterns, then cross-checks the three for
 * arithmetic consistency and adjusts their confidences. Both lists are
 * first-match-wins; their order is observable behavior.
 */

package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/docintel/extraction-worker/internal/ocr"
)

// Keyword sets per amount kind. A line qualifies for a kind when it contains
// any of these as a case-insensitive substring.
var (
	subtotalKeywords = []string{"subtotal", "sub total", "sub-total", "amount before tax", "net amount"}
	taxKeywords      = []string{"tax", "sales tax", "vat", "gst", "hst", "tax amount"}
	totalKeywords    = []string{"total", "amount due", "total amount", "grand total", "balance due", "total due"}
)

// currencyPatterns in priority order: symbol with grouped digits, digits with
// trailing symbol, tight symbol form, bare number as the last resort.
var currencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*\d{1,3}(?:,\d{3})*(?:\.\d{2})?`), // $1,234.56
	regexp.MustCompile(`\d{1,3}(?:,\d{3})*(?:\.\d{2})?\s*\$`), // 1,234.56$
	regexp.MustCompile(`\$\d+(?:\.\d{2})?`),                   // $123.45
	regexp.MustCompile(`\d+(?:\.\d{2})?`),                     // 123.45 (fallback)
}

// nonAmount strips everything but digits and the decimal point before
// parsing a matched currency string.
var nonAmount = regexp.MustCompile(`[^\d.]`)

const (
	consistencyBoost   = 0.2
	consistencyPenalty = 0.3
	minTolerance       = 0.02
	toleranceRate      = 0.01
)

// extractAmounts scans the document lines once per kind and keeps the
// highest-confidence candidate for each.
func (e *Engine) extractAmounts(doc *ocr.Document) (subtotal, tax, total AmountField) {
	lines := strings.Split(doc.RawText, "\n")
	subtotal = bestAmount(lines, subtotalKeywords, doc.Tokens)
	tax = bestAmount(lines, taxKeywords, doc.Tokens)
	total = bestAmount(lines, totalKeywords, doc.Tokens)
	return subtotal, tax, total
}

// bestAmount scans lines in document order. A later, strictly better match
// replaces an earlier one, so the first match wins ties.
func bestAmount(lines []string, keywords []string, tokens []ocr.Token) AmountField {
	best := AmountField{}

	for _, line := range lines {
		line = strings.ToLower(strings.TrimSpace(line))

		for _, keyword := range keywords {
			if strings.Contains(line, keyword) {
				if candidate, ok := currencyFromLine(line, tokens); ok && candidate.Confidence > best.Confidence {
					best = candidate
				}
				break
			}
		}
	}
	return best
}

// currencyFromLine tries each currency pattern against the line and returns
// the first match that parses to a strictly positive amount. Parse failures
// discard only that single match.
func currencyFromLine(line string, tokens []ocr.Token) (AmountField, bool) {
	for _, pattern := range currencyPatterns {
		for _, raw := range pattern.FindAllString(line, -1) {
			amount, err := strconv.ParseFloat(nonAmount.ReplaceAllString(raw, ""), 64)
			if err != nil || amount <= 0 {
				continue
			}
			return AmountField{
				Amount:     amount,
				Valid:      true,
				Confidence: FieldConfidence(raw, tokens),
				Box:        FindBox(raw, tokens),
				RawText:    raw,
			}, true
		}
	}
	return AmountField{}, false
}

// validateAmounts cross-checks subtotal + tax against total. Arithmetic
// agreement within tolerance is strong corroborating evidence and boosts all
// three confidences; disagreement penalizes all three. With any of the three
// missing no judgment is possible and confidences are left untouched.
func validateAmounts(subtotal, tax, total AmountField) (AmountField, AmountField, AmountField) {
	if !subtotal.Valid || !tax.Valid || !total.Valid {
		return subtotal, tax, total
	}

	expected := subtotal.Amount + tax.Amount
	tolerance := math.Max(minTolerance, total.Amount*toleranceRate)

	if math.Abs(total.Amount-expected) <= tolerance {
		subtotal.Confidence = clamp01(subtotal.Confidence + consistencyBoost)
		tax.Confidence = clamp01(tax.Confidence + consistencyBoost)
		total.Confidence = clamp01(total.Confidence + consistencyBoost)
	} else {
		subtotal.Confidence = clamp01(subtotal.Confidence - consistencyPenalty)
		tax.Confidence = clamp01(tax.Confidence - consistencyPenalty)
		total.Confidence = clamp01(total.Confidence - consistencyPenalty)
	}
	return subtotal, tax, total
}
