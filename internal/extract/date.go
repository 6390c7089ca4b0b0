/**
 * Date Extraction
 *
 * Scans the raw OCR text with an ordered list of date-shape patterns and
 * keeps the highest-confidence candidate whose year is plausible for a
 * receipt. The pattern list is evaluated top to bottom and ties go to the
 * earliest find, so reordering it is a behavioral change.
 */

package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docintel/extraction-worker/internal/ocr"
)

// minReceiptYear rejects obviously stale dates; the upper bound is the
// current year plus one, which rejects garbage future dates.
const minReceiptYear = 2000

// datePatterns in priority order: numeric slash/dash forms first, then the
// two month-name forms.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),                                                  // MM/DD/YYYY or MM-DD-YYYY
	regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2}\b`),                                                    // MM/DD/YY
	regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),                                                    // YYYY/MM/DD
	regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`), // Month DD, YYYY
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}\b`),   // DD Month YYYY
}

// dateLayouts tried in order by the lenient parser, after separator
// normalization. Month-first for ambiguous numeric forms.
var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006/1/2",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// extractDate returns the best date candidate in the document, or a soft
// miss when no pattern yields a parseable, in-range date.
func (e *Engine) extractDate(doc *ocr.Document) DateField {
	best := DateField{}
	maxYear := e.clock().Year() + 1

	for _, pattern := range datePatterns {
		for _, raw := range pattern.FindAllString(doc.RawText, -1) {
			parsed, err := parseDate(raw)
			if err != nil {
				continue
			}
			if parsed.Year() < minReceiptYear || parsed.Year() > maxYear {
				continue
			}

			confidence := FieldConfidence(raw, doc.Tokens)
			if !best.Valid || confidence > best.Confidence {
				best = DateField{
					Date:       parsed,
					Valid:      true,
					Confidence: confidence,
					Box:        FindBox(raw, doc.Tokens),
					RawText:    raw,
				}
			}
		}
	}
	return best
}

// parseDate is a lenient parser over the fixed layout list. Dashes become
// slashes and commas/periods are dropped so "Mar. 15, 2024" and "03-15-2024"
// both normalize to a layout form.
func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "-", "/")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, ".", "")

	// Month names must match layout casing ("Mar", not "MAR").
	fields := strings.Fields(s)
	for i, f := range fields {
		if isAlpha(f) {
			fields[i] = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
		}
	}
	s = strings.Join(fields, " ")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
