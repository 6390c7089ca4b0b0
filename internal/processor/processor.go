/**
 * Document Processor for the extraction worker
 *
 * Orchestrates the receipt extraction pipeline:
 * - File loading (inline buffer or URL download with retry)
 * - Image preprocessing (grayscale, upscale, denoise, deskew, binarize)
 * - Tesseract OCR with per-word confidence filtering
 * - Field extraction (vendor, date, subtotal, tax, total)
 * - Result persistence in PostgreSQL
 */

package processor

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/docintel/extraction-worker/internal/errors"
	"github.com/docintel/extraction-worker/internal/extract"
	"github.com/docintel/extraction-worker/internal/ocr"
	"github.com/docintel/extraction-worker/internal/preprocess"
	"github.com/docintel/extraction-worker/internal/storage"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// ResultStore is the persistence surface the processor needs. A nil store is
// allowed; results are then only returned to the caller.
type ResultStore interface {
	StoreExtractionResult(ctx context.Context, rec *storage.ExtractionRecord) (string, error)
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	MaxFileSize         int64
	ConfidenceThreshold int
	PreprocessDefaults  preprocess.Options
	Store               ResultStore
	OCR                 *ocr.Adapter
	Extractor           *extract.Engine
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID      string
	UserID     string
	Filename   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	Metadata   map[string]interface{}

	// Preprocess overrides the configured default steps when non-nil.
	Preprocess *preprocess.Options

	// ConfidenceThreshold overrides the configured default when non-nil.
	ConfidenceThreshold *int
}

// ProcessResult represents the processing result
type ProcessResult struct {
	ResultID          string
	Fields            *extract.Result
	WordCount         int
	AvgConfidence     float64
	OverallConfidence float64
	ProcessingTimeMs  int64
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config    *ProcessorConfig
	store     ResultStore
	ocr       *ocr.Adapter
	extractor *extract.Engine
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.OCR == nil {
		return nil, fmt.Errorf("OCR adapter is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extraction engine is required")
	}
	if cfg.Store == nil {
		log.Printf("WARNING: No result store configured. Extraction results will not be persisted.")
	}

	return &DocumentProcessor{
		config:    cfg,
		store:     cfg.Store,
		ocr:       cfg.OCR,
		extractor: cfg.Extractor,
	}, nil
}

// ProcessDocument processes a receipt image through the complete pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log.Printf("[Job %s] Starting extraction pipeline", req.JobID)

	// Step 1: Download/load file
	log.Printf("[Job %s] Step 1: Loading file (%d bytes)", req.JobID, req.FileSize)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 2: Decode image. The only hard input failure: bytes that no
	// registered decoder accepts.
	log.Printf("[Job %s] Step 2: Decoding image", req.JobID)
	img, format, err := image.Decode(bytes.NewReader(fileData))
	if err != nil {
		return nil, errors.NewImageDecodeError(req.JobID, err)
	}
	bounds := img.Bounds()
	log.Printf("[Job %s] Image decoded: format=%s, size=%dx%d",
		req.JobID, format, bounds.Dx(), bounds.Dy())

	// Step 3: Preprocess
	opts := p.config.PreprocessDefaults
	if req.Preprocess != nil {
		opts = *req.Preprocess
	}
	log.Printf("[Job %s] Step 3: Preprocessing (grayscale=%v upscale=%v denoise=%v deskew=%v binarize=%v)",
		req.JobID, opts.Grayscale, opts.Upscale, opts.Denoise, opts.Deskew, opts.Binarize)
	processed, scale := preprocess.Run(img, opts)

	// Step 4: OCR
	threshold := p.config.ConfidenceThreshold
	if req.ConfidenceThreshold != nil {
		threshold = *req.ConfidenceThreshold
	}
	log.Printf("[Job %s] Step 4: Running OCR (threshold=%d, scale=%.1f)", req.JobID, threshold, scale)
	doc := p.ocr.Recognize(ctx, processed, threshold, scale)
	log.Printf("[Job %s] OCR complete: words=%d, avgConfidence=%.1f",
		req.JobID, doc.WordCount, doc.AvgConfidence)

	// Step 5: Field extraction
	log.Printf("[Job %s] Step 5: Extracting fields", req.JobID)
	fields := p.extractor.Extract(doc)
	log.Printf("[Job %s] Extraction complete: vendor=%q date=%s subtotal=%v tax=%v total=%v confidence=%.2f",
		req.JobID, fields.Vendor.Name, fields.Date.ISO(),
		fields.Subtotal.Valid, fields.Tax.Valid, fields.Total.Valid,
		fields.OverallConfidence)

	processingTime := time.Since(startTime).Milliseconds()

	result := &ProcessResult{
		Fields:            fields,
		WordCount:         doc.WordCount,
		AvgConfidence:     doc.AvgConfidence,
		OverallConfidence: fields.OverallConfidence,
		ProcessingTimeMs:  processingTime,
	}

	// Step 6: Persist
	if p.store != nil {
		log.Printf("[Job %s] Step 6: Storing extraction result", req.JobID)
		resultID, err := p.store.StoreExtractionResult(ctx, buildRecord(req.JobID, doc, fields))
		if err != nil {
			return nil, errors.NewStorageFailedError(req.JobID, err)
		}
		result.ResultID = resultID
		log.Printf("[Job %s] Result stored: resultId=%s", req.JobID, resultID)
	} else {
		log.Printf("[Job %s] Skipping result storage: store not configured", req.JobID)
	}

	log.Printf("[Job %s] Pipeline complete: confidence=%.2f, duration=%dms",
		req.JobID, fields.OverallConfidence, processingTime)

	return result, nil
}

// buildRecord maps an extraction result to its persisted form. Soft-missed
// fields become SQL NULLs.
func buildRecord(jobID string, doc *ocr.Document, fields *extract.Result) *storage.ExtractionRecord {
	rec := &storage.ExtractionRecord{
		JobID: jobID,
		FieldConfidences: map[string]float64{
			"vendor":   fields.Vendor.Confidence,
			"date":     fields.Date.Confidence,
			"subtotal": fields.Subtotal.Confidence,
			"tax":      fields.Tax.Confidence,
			"total":    fields.Total.Confidence,
		},
		OverallConfidence: fields.OverallConfidence,
		WordCount:         doc.WordCount,
		AvgConfidence:     doc.AvgConfidence,
	}

	if fields.Vendor.Name != "" {
		rec.Vendor = sql.NullString{String: fields.Vendor.Name, Valid: true}
	}
	if fields.Date.Valid {
		rec.DocumentDate = sql.NullString{String: fields.Date.ISO(), Valid: true}
	}
	if fields.Subtotal.Valid {
		rec.Subtotal = sql.NullFloat64{Float64: fields.Subtotal.Amount, Valid: true}
	}
	if fields.Tax.Valid {
		rec.Tax = sql.NullFloat64{Float64: fields.Tax.Amount, Valid: true}
	}
	if fields.Total.Valid {
		rec.Total = sql.NullFloat64{Float64: fields.Total.Amount, Valid: true}
	}
	return rec
}

// UpdateJobStatus updates job status in the database
func (p *DocumentProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	if p.store == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	// Extract specific fields from metadata if present
	if metadata != nil {
		if confidence, ok := metadata["confidence"].(float64); ok {
			update.OverallConfidence = confidence
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if resultID, ok := metadata["resultId"].(string); ok {
			update.ResultID = resultID
		}
		if errorCode, ok := metadata["errorCode"].(string); ok {
			update.ErrorCode = errorCode
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = "PROCESSING_ERROR"
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// loadFile loads file from URL or buffer
func (p *DocumentProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	// If buffer is provided, use it directly
	if len(req.FileBuffer) > 0 {
		if p.config.MaxFileSize > 0 && int64(len(req.FileBuffer)) > p.config.MaxFileSize {
			return nil, errors.NewFileTooLargeError(req.JobID, int64(len(req.FileBuffer)), p.config.MaxFileSize)
		}
		log.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	// If URL is provided, download it
	if req.FileURL != "" {
		log.Printf("[Job %s] Downloading file from URL: %s", req.JobID, req.FileURL)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
		if err != nil {
			return nil, errors.NewDownloadFailedError(req.JobID, req.FileURL, err)
		}
		log.Printf("[Job %s] File downloaded successfully (%d bytes)", req.JobID, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

// downloadFileFromURL downloads a file with retry and exponential backoff.
func (p *DocumentProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	const (
		maxRetries       = 3
		initialBackoffMs = 1000
		maxBackoffMs     = 8000
	)

	client := &http.Client{Timeout: 60 * time.Second}

	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[Job %s] Download attempt %d/%d", jobID, attempt, maxRetries)

		fileData, err := p.fetchOnce(ctx, client, jobID, fileURL)
		if err == nil {
			log.Printf("[Job %s] Download successful on attempt %d: %d bytes", jobID, attempt, len(fileData))
			return fileData, nil
		}

		lastErr = err
		log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, err)

		if attempt < maxRetries {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			log.Printf("[Job %s] Retrying in %dms...", jobID, backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff")
			}
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", maxRetries, lastErr)
}

func (p *DocumentProcessor) fetchOnce(ctx context.Context, client *http.Client, jobID, fileURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if p.config.MaxFileSize > 0 && resp.ContentLength > p.config.MaxFileSize {
		return nil, errors.NewFileTooLargeError(jobID, resp.ContentLength, p.config.MaxFileSize)
	}

	maxReadBytes := p.config.MaxFileSize
	if maxReadBytes <= 0 {
		maxReadBytes = 100 * 1024 * 1024 // 100MB safety limit
	}

	// Read one byte past the limit to distinguish "exactly at limit" from
	// "over limit".
	fileData, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(fileData)) > maxReadBytes {
		return nil, errors.NewFileTooLargeError(jobID, int64(len(fileData)), maxReadBytes)
	}

	return fileData, nil
}
