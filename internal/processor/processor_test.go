/**
 * Document Processor Tests
 *
 * Runs the full pipeline with a stub OCR engine: decode, preprocess,
 * recognize, extract, persist. Network and Tesseract are not involved.
 */

package processor

import (
	"bytes"
	"context"
	goerrors "errors"
	"image"
	"image/png"
	"testing"

	"github.com/docintel/extraction-worker/internal/errors"
	"github.com/docintel/extraction-worker/internal/extract"
	"github.com/docintel/extraction-worker/internal/ocr"
	"github.com/docintel/extraction-worker/internal/preprocess"
	"github.com/docintel/extraction-worker/internal/storage"
)

type stubEngine struct {
	rec ocr.Recognition
	err error
}

func (s stubEngine) Recognize(ctx context.Context, img image.Image) (ocr.Recognition, error) {
	return s.rec, s.err
}

type recordingStore struct {
	record   *storage.ExtractionRecord
	updates  []storage.JobUpdate
	resultID string
}

func (r *recordingStore) StoreExtractionResult(ctx context.Context, rec *storage.ExtractionRecord) (string, error) {
	r.record = rec
	r.resultID = "11111111-2222-3333-4444-555555555555"
	return r.resultID, nil
}

func (r *recordingStore) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	r.updates = append(r.updates, *update)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func receiptRecognition() ocr.Recognition {
	return ocr.Recognition{
		Text: "TECH MART ELECTRONICS\n" +
			"Date: 03/15/2024\n" +
			"SUBTOTAL: $147.96\n" +
			"TAX (8.75%): $12.95\n" +
			"TOTAL: $160.91",
		Words: []ocr.Word{
			{Text: "TECH", Confidence: 85},
			{Text: "MART", Confidence: 86},
			{Text: "ELECTRONICS", Confidence: 87},
			{Text: "Date:", Confidence: 84},
			{Text: "03/15/2024", Confidence: 89},
			{Text: "SUBTOTAL:", Confidence: 85},
			{Text: "$147.96", Confidence: 84},
			{Text: "TAX", Confidence: 85},
			{Text: "(8.75%):", Confidence: 82},
			{Text: "$12.95", Confidence: 85},
			{Text: "TOTAL:", Confidence: 90},
			{Text: "$160.91", Confidence: 91},
		},
	}
}

func newTestProcessor(t *testing.T, engine ocr.Engine, store ResultStore) *DocumentProcessor {
	t.Helper()
	proc, err := NewDocumentProcessor(&ProcessorConfig{
		MaxFileSize:         1 << 20,
		ConfidenceThreshold: 30,
		PreprocessDefaults:  preprocess.Options{},
		Store:               store,
		OCR:                 ocr.NewAdapter(engine),
		Extractor:           extract.NewEngine(),
	})
	if err != nil {
		t.Fatalf("NewDocumentProcessor: %v", err)
	}
	return proc
}

func TestProcessDocumentPipeline(t *testing.T) {
	store := &recordingStore{}
	proc := newTestProcessor(t, stubEngine{rec: receiptRecognition()}, store)

	result, err := proc.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-1",
		Filename:   "receipt.png",
		FileBuffer: pngBytes(t),
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Fields.Vendor.Name != "Tech Mart Electronics" {
		t.Errorf("vendor = %q", result.Fields.Vendor.Name)
	}
	if result.Fields.Date.ISO() != "2024-03-15" {
		t.Errorf("date = %q", result.Fields.Date.ISO())
	}
	if result.Fields.Total.Amount != 160.91 {
		t.Errorf("total = %v", result.Fields.Total.Amount)
	}
	if result.WordCount != 12 {
		t.Errorf("word count = %d, want 12", result.WordCount)
	}
	if result.ResultID != store.resultID {
		t.Errorf("result id = %q, want %q", result.ResultID, store.resultID)
	}

	rec := store.record
	if rec == nil {
		t.Fatal("extraction result was not stored")
	}
	if rec.JobID != "job-1" {
		t.Errorf("stored job id = %q", rec.JobID)
	}
	if !rec.Vendor.Valid || rec.Vendor.String != "Tech Mart Electronics" {
		t.Errorf("stored vendor = %+v", rec.Vendor)
	}
	if !rec.DocumentDate.Valid || rec.DocumentDate.String != "2024-03-15" {
		t.Errorf("stored date = %+v", rec.DocumentDate)
	}
	if !rec.Total.Valid || rec.Total.Float64 != 160.91 {
		t.Errorf("stored total = %+v", rec.Total)
	}
	if len(rec.FieldConfidences) != 5 {
		t.Errorf("stored confidences = %+v, want 5 entries", rec.FieldConfidences)
	}
}

func TestProcessDocumentSoftMissesStoredAsNulls(t *testing.T) {
	store := &recordingStore{}
	// A stop-word line and a digit-heavy line: nothing qualifies as a field.
	proc := newTestProcessor(t, stubEngine{rec: ocr.Recognition{
		Text:  "RECEIPT\n0000 0000",
		Words: []ocr.Word{{Text: "RECEIPT", Confidence: 55}, {Text: "0000", Confidence: 52}},
	}}, store)

	_, err := proc.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-2",
		FileBuffer: pngBytes(t),
	})
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	rec := store.record
	if rec.Vendor.Valid || rec.DocumentDate.Valid || rec.Subtotal.Valid || rec.Tax.Valid || rec.Total.Valid {
		t.Errorf("soft misses stored as values: %+v", rec)
	}
}

func TestProcessDocumentUndecodableInput(t *testing.T) {
	proc := newTestProcessor(t, stubEngine{}, nil)

	_, err := proc.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-3",
		FileBuffer: []byte("this is not an image"),
	})
	if err == nil {
		t.Fatal("expected decode error")
	}

	var perr *errors.ProcessingError
	if !goerrors.As(err, &perr) {
		t.Fatalf("error type = %T, want *errors.ProcessingError", err)
	}
	if perr.Code != errors.ErrorImageDecodeFailed {
		t.Errorf("error code = %s, want %s", perr.Code, errors.ErrorImageDecodeFailed)
	}
}

func TestProcessDocumentOCRFailureSoftDegrades(t *testing.T) {
	store := &recordingStore{}
	proc := newTestProcessor(t, stubEngine{err: goerrors.New("tesseract unavailable")}, store)

	result, err := proc.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-4",
		FileBuffer: pngBytes(t),
	})
	if err != nil {
		t.Fatalf("OCR failure must not abort the pipeline: %v", err)
	}
	if result.WordCount != 0 || result.OverallConfidence != 0 {
		t.Errorf("result = %+v, want all soft misses", result)
	}
}

func TestProcessDocumentBufferTooLarge(t *testing.T) {
	proc, err := NewDocumentProcessor(&ProcessorConfig{
		MaxFileSize:         16,
		ConfidenceThreshold: 30,
		OCR:                 ocr.NewAdapter(stubEngine{}),
		Extractor:           extract.NewEngine(),
	})
	if err != nil {
		t.Fatalf("NewDocumentProcessor: %v", err)
	}

	_, err = proc.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-5",
		FileBuffer: pngBytes(t),
	})

	var perr *errors.ProcessingError
	if !goerrors.As(err, &perr) || perr.Code != errors.ErrorFileTooLarge {
		t.Fatalf("error = %v, want FILE_TOO_LARGE", err)
	}
}

func TestProcessDocumentNoSource(t *testing.T) {
	proc := newTestProcessor(t, stubEngine{}, nil)

	if _, err := proc.ProcessDocument(context.Background(), &ProcessRequest{JobID: "job-6"}); err == nil {
		t.Fatal("expected error for request without buffer or URL")
	}
}

func TestUpdateJobStatusMapsMetadata(t *testing.T) {
	store := &recordingStore{}
	proc := newTestProcessor(t, stubEngine{}, store)

	err := proc.UpdateJobStatus(context.Background(), "job-7", "completed", map[string]interface{}{
		"confidence":     0.93,
		"processingTime": int64(1200),
		"resultId":       "res-1",
	})
	if err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	if len(store.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(store.updates))
	}
	update := store.updates[0]
	if update.Status != "completed" || update.OverallConfidence != 0.93 ||
		update.ProcessingTimeMs != 1200 || update.ResultID != "res-1" {
		t.Errorf("update = %+v", update)
	}
}
