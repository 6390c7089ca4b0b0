/**
 * Amount Extraction and Validation Tests
 */

package extract

import (
	"testing"

	"github.com/docintel/extraction-worker/internal/ocr"
)

func TestExtractAmountShapes(t *testing.T) {
	e := NewEngine()

	testCases := []struct {
		name string
		line string
		want float64
	}{
		{"symbol with cents", "TOTAL: $160.91", 160.91},
		{"symbol with grouping", "TOTAL: $1,234.56", 1234.56},
		{"symbol with space", "TOTAL: $ 42.00", 42},
		{"trailing symbol", "TOTAL: 1,234.56$", 1234.56},
		{"bare number", "TOTAL 160.91", 160.91},
		{"bare integer", "AMOUNT DUE 45", 45},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, total := e.extractAmounts(docWithText(tc.line))
			if !total.Valid {
				t.Fatalf("extractAmounts(%q) soft miss, want %v", tc.line, tc.want)
			}
			if total.Amount != tc.want {
				t.Errorf("extractAmounts(%q) = %v, want %v", tc.line, total.Amount, tc.want)
			}
		})
	}
}

func TestExtractAmountKeywords(t *testing.T) {
	e := NewEngine()

	doc := docWithText("Net Amount 100.00\nVAT 20.00\nBalance Due 120.00")
	subtotal, tax, total := e.extractAmounts(doc)

	if !subtotal.Valid || subtotal.Amount != 100 {
		t.Errorf("subtotal = %+v, want valid 100", subtotal)
	}
	if !tax.Valid || tax.Amount != 20 {
		t.Errorf("tax = %+v, want valid 20", tax)
	}
	if !total.Valid || total.Amount != 120 {
		t.Errorf("total = %+v, want valid 120", total)
	}
}

func TestExtractAmountRejectsNonPositive(t *testing.T) {
	e := NewEngine()

	_, _, total := e.extractAmounts(docWithText("TOTAL: 0.00"))
	if total.Valid {
		t.Errorf("zero amount accepted: %+v", total)
	}

	_, tax, _ := e.extractAmounts(docWithText("tax exempt"))
	if tax.Valid {
		t.Errorf("amountless line accepted: %+v", tax)
	}
}

func TestExtractAmountPrefersHigherConfidence(t *testing.T) {
	e := NewEngine()

	// "SUBTOTAL" lines also contain "total", so the total extractor sees
	// both; the higher-confidence token must win.
	doc := &ocr.Document{
		RawText: "SUBTOTAL: $147.96\nTOTAL: $160.91",
		Tokens: []ocr.Token{
			{Text: "$147.96", Confidence: 84},
			{Text: "$160.91", Confidence: 91},
		},
	}

	_, _, total := e.extractAmounts(doc)
	if !total.Valid || total.Amount != 160.91 {
		t.Errorf("total = %+v, want 160.91 from the higher-confidence line", total)
	}
}

func amountOf(value, confidence float64) AmountField {
	return AmountField{Amount: value, Valid: true, Confidence: confidence}
}

func TestValidateAmountsBoost(t *testing.T) {
	subtotal, tax, total := validateAmounts(
		amountOf(100, 0.6), amountOf(5, 0.6), amountOf(105, 0.6))

	for name, f := range map[string]AmountField{"subtotal": subtotal, "tax": tax, "total": total} {
		approx(t, name+" confidence", f.Confidence, 0.8, 1e-9)
	}
}

func TestValidateAmountsBoostWithinTolerance(t *testing.T) {
	// Expected 105, tolerance max(0.02, 1.055) = 1.055.
	_, _, total := validateAmounts(
		amountOf(100, 0.5), amountOf(5, 0.5), amountOf(105.5, 0.5))
	approx(t, "total confidence", total.Confidence, 0.7, 1e-9)
}

func TestValidateAmountsPenalty(t *testing.T) {
	subtotal, tax, total := validateAmounts(
		amountOf(100, 0.5), amountOf(5, 0.5), amountOf(120, 0.5))

	for name, f := range map[string]AmountField{"subtotal": subtotal, "tax": tax, "total": total} {
		approx(t, name+" confidence", f.Confidence, 0.2, 1e-9)
	}
}

func TestValidateAmountsClamps(t *testing.T) {
	_, _, total := validateAmounts(
		amountOf(100, 0.95), amountOf(5, 0.95), amountOf(105, 0.95))
	approx(t, "boost clamp", total.Confidence, 1.0, 1e-9)

	_, tax, _ := validateAmounts(
		amountOf(100, 0.1), amountOf(5, 0.1), amountOf(500, 0.1))
	approx(t, "penalty clamp", tax.Confidence, 0.0, 1e-9)
}

func TestValidateAmountsMissingFieldUntouched(t *testing.T) {
	subtotal, tax, total := validateAmounts(
		amountOf(100, 0.6), AmountField{}, amountOf(120, 0.6))

	if subtotal.Confidence != 0.6 || total.Confidence != 0.6 {
		t.Errorf("confidences changed with a missing field: subtotal=%v total=%v",
			subtotal.Confidence, total.Confidence)
	}
	if tax.Valid || tax.Confidence != 0 {
		t.Errorf("missing tax mutated: %+v", tax)
	}
}
