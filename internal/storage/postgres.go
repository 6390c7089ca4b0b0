/**
 * PostgreSQL Client for the extraction worker
 *
 * Handles job status persistence and storage of finished extraction results.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/docintel/extraction-worker/internal/logging"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db  *sql.DB
	log *logging.Logger
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID             string
	Status            string
	OverallConfidence float64
	ProcessingTimeMs  int64
	ResultID          string
	ErrorCode         string
	ErrorMessage      string
	Metadata          map[string]interface{}
}

// ExtractionRecord is the persisted form of one extraction result. Absent
// fields are stored as NULL.
type ExtractionRecord struct {
	ID                string
	JobID             string
	Vendor            sql.NullString
	DocumentDate      sql.NullString // ISO YYYY-MM-DD
	Subtotal          sql.NullFloat64
	Tax               sql.NullFloat64
	Total             sql.NullFloat64
	FieldConfidences  map[string]float64
	OverallConfidence float64
	WordCount         int
	AvgConfidence     float64
}

// sanitizeConfidence rounds a confidence to 4 decimal places and clamps it
// to [0.0, 1.0]. Float64 representations like 0.9632000000000001 otherwise
// trip PostgreSQL NUMERIC casting.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db, log: logging.NewLogger("storage")}, nil
}

// UpdateJobStatus upserts job status in the database. The worker may see a
// job before the API created its record, so the insert path creates it.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitized := sanitizeConfidence(update.OverallConfidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO extraction.processing_jobs (
			id, status, overall_confidence, processing_time_ms, result_id,
			error_code, error_message, metadata, created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3::NUMERIC(5,4), 0), NULLIF($4, 0),
			CASE WHEN $5 = '' THEN NULL ELSE $5::uuid END,
			NULLIF($6, ''), NULLIF($7, ''),
			COALESCE($8::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			overall_confidence = COALESCE(EXCLUDED.overall_confidence, extraction.processing_jobs.overall_confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, extraction.processing_jobs.processing_time_ms),
			result_id = COALESCE(EXCLUDED.result_id, extraction.processing_jobs.result_id),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = COALESCE(EXCLUDED.metadata, extraction.processing_jobs.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Status,
		sanitized,
		update.ProcessingTimeMs,
		update.ResultID,
		update.ErrorCode,
		update.ErrorMessage,
		metadataJSON,
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// StoreExtractionResult inserts a finished extraction and returns its id.
func (p *PostgresClient) StoreExtractionResult(ctx context.Context, rec *ExtractionRecord) (string, error) {
	if rec.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	sanitizedConfidences := make(map[string]float64, len(rec.FieldConfidences))
	for field, conf := range rec.FieldConfidences {
		sanitizedConfidences[field] = sanitizeConfidence(conf)
	}
	confidencesJSON, err := json.Marshal(sanitizedConfidences)
	if err != nil {
		return "", fmt.Errorf("failed to marshal field confidences: %w", err)
	}

	query := `
		INSERT INTO extraction.extraction_results (
			id, job_id, vendor, document_date, subtotal, tax, total,
			field_confidences, overall_confidence, word_count, avg_confidence,
			created_at
		) VALUES (
			$1::uuid, $2::uuid, $3, $4::date, $5, $6, $7,
			$8::jsonb, $9::NUMERIC(5,4), $10, $11, NOW()
		)
		RETURNING id
	`

	var resultID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.JobID,
		rec.Vendor,
		rec.DocumentDate,
		rec.Subtotal,
		rec.Tax,
		rec.Total,
		confidencesJSON,
		sanitizeConfidence(rec.OverallConfidence),
		rec.WordCount,
		rec.AvgConfidence,
	).Scan(&resultID)

	if err != nil {
		return "", fmt.Errorf("failed to store extraction result (job=%s): %w", rec.JobID, err)
	}

	p.log.Debug("extraction result stored", "resultId", resultID, "jobId", rec.JobID)
	return resultID, nil
}

// GetExtractionResult retrieves a stored extraction result by id.
func (p *PostgresClient) GetExtractionResult(ctx context.Context, resultID string) (*ExtractionRecord, error) {
	if resultID == "" {
		return nil, fmt.Errorf("result ID is required")
	}

	query := `
		SELECT id, job_id, vendor, document_date::text, subtotal, tax, total,
		       field_confidences, overall_confidence, word_count, avg_confidence
		FROM extraction.extraction_results
		WHERE id = $1
	`

	var rec ExtractionRecord
	var confidencesJSON []byte

	err := p.db.QueryRowContext(ctx, query, resultID).Scan(
		&rec.ID,
		&rec.JobID,
		&rec.Vendor,
		&rec.DocumentDate,
		&rec.Subtotal,
		&rec.Tax,
		&rec.Total,
		&confidencesJSON,
		&rec.OverallConfidence,
		&rec.WordCount,
		&rec.AvgConfidence,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction result not found: %s", resultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction result: %w", err)
	}

	if err := json.Unmarshal(confidencesJSON, &rec.FieldConfidences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal field confidences: %w", err)
	}

	return &rec, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}
