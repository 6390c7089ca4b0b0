/**
 * Field Extraction Engine
 *
 * Extracts structured business fields (vendor, date, subtotal, tax, total)
 * from noisy per-word OCR output using ordered pattern lists and line-based
 * keyword search. The engine is stateless: its pattern lists, keyword maps
 * and stop-word set are read-only configuration, so any number of documents
 * can be processed in parallel with one Engine.
 */

package extract

import (
	"sync"
	"time"

	"github.com/docintel/extraction-worker/internal/ocr"
)

// VendorField is a vendor-name candidate. An empty Name means no evidence
// was found (soft miss).
type VendorField struct {
	Name       string
	Confidence float64
	Box        *ocr.Box
	RawText    string
}

// DateField is a document-date candidate. Valid=false means soft miss.
type DateField struct {
	Date       time.Time
	Valid      bool
	Confidence float64
	Box        *ocr.Box
	RawText    string
}

// ISO renders the date as YYYY-MM-DD, or "" for a soft miss.
func (d DateField) ISO() string {
	if !d.Valid {
		return ""
	}
	return d.Date.Format("2006-01-02")
}

// AmountField is a monetary-amount candidate. Valid=false means soft miss.
type AmountField struct {
	Amount     float64
	Valid      bool
	Confidence float64
	Box        *ocr.Box
	RawText    string
}

// Result is the final immutable extraction output for one document.
type Result struct {
	Vendor            VendorField
	Date              DateField
	Subtotal          AmountField
	Tax               AmountField
	Total             AmountField
	OverallConfidence float64
}

// Engine runs the field extractors. Create one with NewEngine and share it
// freely; it holds no per-document state.
type Engine struct {
	clock func() time.Time
}

// NewEngine creates an extraction engine.
func NewEngine() *Engine {
	return &Engine{clock: time.Now}
}

// Extract runs the three field extractors over an immutable OCR document and
// assembles the final result. The extractors read the same document and
// write disjoint outputs, so they run concurrently.
func (e *Engine) Extract(doc *ocr.Document) *Result {
	var (
		vendor              VendorField
		date                DateField
		subtotal, tax, total AmountField
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		vendor = e.extractVendor(doc)
	}()
	go func() {
		defer wg.Done()
		date = e.extractDate(doc)
	}()
	go func() {
		defer wg.Done()
		subtotal, tax, total = e.extractAmounts(doc)
	}()
	wg.Wait()

	subtotal, tax, total = validateAmounts(subtotal, tax, total)

	overall := (vendor.Confidence + date.Confidence +
		subtotal.Confidence + tax.Confidence + total.Confidence) / 5

	return &Result{
		Vendor:            vendor,
		Date:              date,
		Subtotal:          subtotal,
		Tax:               tax,
		Total:             total,
		OverallConfidence: overall,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
