/**
 * Extraction Worker - Main Entry Point
 *
 * Go worker that turns receipt and invoice images into structured fields.
 *
 * Architecture:
 * - Redis-backed job queue (asynq or plain list driver)
 * - Image preprocessing pipeline tuned for OCR legibility
 * - Tesseract OCR with per-word confidence filtering
 * - Field extraction: vendor, date, subtotal, tax, total
 * - PostgreSQL persistence for jobs and extraction results
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docintel/extraction-worker/internal/config"
	"github.com/docintel/extraction-worker/internal/extract"
	"github.com/docintel/extraction-worker/internal/ocr"
	"github.com/docintel/extraction-worker/internal/processor"
	"github.com/docintel/extraction-worker/internal/queue"
	"github.com/docintel/extraction-worker/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Extraction Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Queue=%s (%s driver), Workers=%d",
		cfg.RedisURL, cfg.QueueName, cfg.QueueDriver, cfg.WorkerConcurrency)

	// Initialize storage. The worker runs without it, returning results only
	// through the queue.
	var store processor.ResultStore
	var pg *storage.PostgresClient
	if cfg.DatabaseURL != "" {
		log.Printf("Connecting to PostgreSQL...")
		pg, err = storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
		}
		defer pg.Close()
		store = pg
		log.Printf("PostgreSQL client initialized")
	} else {
		log.Printf("WARNING: DATABASE_URL not set. Results will not be persisted.")
	}

	// Initialize OCR
	languages := strings.Split(cfg.TesseractLanguages, "+")
	engine := ocr.NewTesseractEngine(languages...)
	adapter := ocr.NewAdapter(engine)
	log.Printf("Tesseract engine initialized (languages=%s)", cfg.TesseractLanguages)

	// Initialize document processor
	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		MaxFileSize:         cfg.MaxFileSize,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		PreprocessDefaults:  cfg.Preprocess,
		Store:               store,
		OCR:                 adapter,
		Extractor:           extract.NewEngine(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize document processor: %v", err)
	}
	log.Printf("Document processor initialized")

	// Initialize queue consumer per driver
	log.Printf("Connecting to Redis queue...")
	stopConsumer, err := startConsumer(cfg, proc)
	if err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Extraction Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s driver)", cfg.QueueName, cfg.QueueDriver)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Confidence threshold: %d", cfg.ConfidenceThreshold)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := stopConsumer(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Shutdown complete")
}

// startConsumer starts the configured queue driver and returns its stop
// function.
func startConsumer(cfg *config.Config, proc processor.DocumentProcessorInterface) (func() error, error) {
	switch cfg.QueueDriver {
	case "list":
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			return nil, err
		}
		if err := consumer.Start(); err != nil {
			return nil, err
		}
		return consumer.Stop, nil

	case "asynq":
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			return nil, err
		}
		if err := consumer.Start(context.Background()); err != nil {
			return nil, err
		}
		return func() error { return consumer.Stop(context.Background()) }, nil

	default:
		return nil, fmt.Errorf("unknown queue driver: %s", cfg.QueueDriver)
	}
}

// healthCheck verifies database connectivity.
func healthCheck(db *storage.PostgresClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
