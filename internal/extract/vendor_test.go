/**
 * Vendor Extraction Tests
 */

package extract

import (
	"testing"

	"github.com/docintel/extraction-worker/internal/ocr"
)

func TestExtractVendorSkipsStopWordLines(t *testing.T) {
	e := NewEngine()

	doc := docWithText("INVOICE #4471\nACME SUPPLY CO\n123 Main Street")
	got := e.extractVendor(doc)

	if got.Name != "Acme Supply Co" {
		t.Errorf("vendor = %q, want %q", got.Name, "Acme Supply Co")
	}
	if got.RawText != "ACME SUPPLY CO" {
		t.Errorf("raw text = %q, want the original line", got.RawText)
	}
}

func TestExtractVendorTitleCases(t *testing.T) {
	e := NewEngine()

	got := e.extractVendor(docWithText("corner bakery"))
	if got.Name != "Corner Bakery" {
		t.Errorf("vendor = %q, want %q", got.Name, "Corner Bakery")
	}
}

func TestExtractVendorRejectsDigitHeavyLines(t *testing.T) {
	e := NewEngine()

	// More than half the characters are digits.
	got := e.extractVendor(docWithText("1234567 89"))
	if got.Name != "" {
		t.Errorf("digit-heavy line accepted as vendor: %q", got.Name)
	}
}

func TestExtractVendorRejectsImplausibleLengths(t *testing.T) {
	e := NewEngine()

	if got := e.extractVendor(docWithText("AB")); got.Name != "" {
		t.Errorf("two-character line accepted: %q", got.Name)
	}

	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	if got := e.extractVendor(docWithText(string(long))); got.Name != "" {
		t.Errorf("over-long line accepted: %q", got.Name)
	}
}

func TestExtractVendorPrefersEarlierLines(t *testing.T) {
	e := NewEngine()

	// Identical length, no token evidence: position decides.
	got := e.extractVendor(docWithText("ACME CO\nZETA CO"))
	if got.Name != "Acme Co" {
		t.Errorf("vendor = %q, want earlier line %q", got.Name, "Acme Co")
	}
}

func TestExtractVendorIgnoresLinesBeyondTop(t *testing.T) {
	e := NewEngine()

	// Ten disqualified lines (all digits) push the real name past the window.
	text := ""
	for i := 0; i < 10; i++ {
		text += "0000000000\n"
	}
	text += "ACME SUPPLY CO"

	got := e.extractVendor(docWithText(text))
	if got.Name != "" {
		t.Errorf("line beyond the top window accepted: %q", got.Name)
	}
}

func TestExtractVendorUsesTokenConfidence(t *testing.T) {
	e := NewEngine()

	doc := &ocr.Document{
		RawText: "ACME CO\nZETA CO",
		Tokens: []ocr.Token{
			{Text: "ACME", Confidence: 10},
			{Text: "ZETA", Confidence: 99},
			{Text: "CO", Confidence: 99},
		},
	}

	// Position favors line 0 by 0.04, but OCR evidence favors line 1 by far
	// more than that.
	got := e.extractVendor(doc)
	if got.Name != "Zeta Co" {
		t.Errorf("vendor = %q, want the higher-confidence %q", got.Name, "Zeta Co")
	}
}
