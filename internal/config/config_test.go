/**
 * Configuration Tests
 */

package config

import (
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.QueueName != "extraction:jobs" {
		t.Errorf("queue name = %q", cfg.QueueName)
	}
	if cfg.QueueDriver != "asynq" {
		t.Errorf("queue driver = %q", cfg.QueueDriver)
	}
	if cfg.ConfidenceThreshold != 30 {
		t.Errorf("confidence threshold = %d", cfg.ConfidenceThreshold)
	}
	if !cfg.Preprocess.Grayscale || !cfg.Preprocess.Binarize {
		t.Errorf("preprocess defaults = %+v, want all enabled", cfg.Preprocess)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("QUEUE_DRIVER", "list")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("CONFIDENCE_THRESHOLD", "55")
	t.Setenv("PREPROCESS_DESKEW", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.QueueDriver != "list" || cfg.WorkerConcurrency != 4 || cfg.ConfidenceThreshold != 55 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Preprocess.Deskew {
		t.Error("PREPROCESS_DESKEW=false not applied")
	}
	if !cfg.Preprocess.Grayscale {
		t.Error("unrelated preprocess default changed")
	}
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")
	t.Setenv("PREPROCESS_UPSCALE", "sometimes")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WorkerConcurrency != 10 {
		t.Errorf("concurrency = %d, want default 10", cfg.WorkerConcurrency)
	}
	if !cfg.Preprocess.Upscale {
		t.Error("upscale = false, want default true")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty redis url", func(c *Config) { c.RedisURL = "" }},
		{"unknown driver", func(c *Config) { c.QueueDriver = "kafka" }},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"threshold above range", func(c *Config) { c.ConfidenceThreshold = 101 }},
		{"tiny max file size", func(c *Config) { c.MaxFileSize = 100 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}
