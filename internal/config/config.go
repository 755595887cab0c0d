// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrModelAPIKeyRequired is returned when MODEL_API_KEY is not set.
	ErrModelAPIKeyRequired = errors.New("config: MODEL_API_KEY is required")
	// ErrS3BucketRequired is returned when S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required")
)

// Config holds all configuration for the worker.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Inference backend settings
	ModelAPIKey       string  `env:"MODEL_API_KEY, required" json:"-"` // Masked in JSON
	Model             string  `env:"MODEL, default=gemini-2.5-flash" json:"model"`
	Temperature       float64 `env:"TEMPERATURE, default=0.4" json:"temperature"`
	StrictTemperature float64 `env:"STRICT_TEMPERATURE, default=0" json:"strict_temperature"`

	// Pipeline concurrency and windowing
	Concurrency         int `env:"CONCURRENCY, default=5" json:"concurrency"`
	ChunkSeconds        int `env:"CHUNK_SECONDS, default=30" json:"chunk_seconds"`
	ChunkOverlapSeconds int `env:"CHUNK_OVERLAP_SECONDS, default=4" json:"chunk_overlap_seconds"`
	MaxClipFPS          int `env:"MAX_CLIP_FPS, default=24" json:"max_clip_fps"`

	// Rate-limit and retry policy
	GlobalRateLimitPauseMs   int `env:"GLOBAL_RATE_LIMIT_PAUSE_MS, default=300000" json:"global_rate_limit_pause_ms"`
	MaxTransientRetries      int `env:"MAX_TRANSIENT_RETRIES, default=3" json:"max_transient_retries"`
	TransientRetryIntervalMs int `env:"TRANSIENT_RETRY_INTERVAL_MS, default=60000" json:"transient_retry_interval_ms"`
	CallTimeoutMs            int `env:"CALL_TIMEOUT_MS, default=120000" json:"call_timeout_ms"`
	FileReadyTimeoutMs       int `env:"FILE_READY_TIMEOUT_MS, default=300000" json:"file_ready_timeout_ms"`

	// Behavior span thresholds
	MergeGapSeconds          float64 `env:"MERGE_GAP_SECONDS, default=2.5" json:"merge_gap_seconds"`
	ValidationMarginSeconds  float64 `env:"VALIDATION_MARGIN_SECONDS, default=3" json:"validation_margin_seconds"`
	MinActionDurationSeconds float64 `env:"MIN_ACTION_DURATION_SECONDS, default=0.8" json:"min_action_duration_seconds"`

	// Storage path conventions
	VideosPrefix   string `env:"VIDEOS_PREFIX, default=child-videos" json:"videos_prefix"`
	SessionsPrefix string `env:"SESSIONS_PREFIX, default=sessions" json:"sessions_prefix"`
	AnalysisPrefix string `env:"ANALYSIS_PREFIX, default=analysis" json:"analysis_prefix"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/behavior-worker" json:"temp_dir"`

	// S3 settings
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, default=us-east-1" json:"s3_region"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional bearer auth for the push endpoint
	WorkerAPIToken string `env:"WORKER_API_TOKEN" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// AuthEnabled returns true if a bearer token has been configured for the push endpoint.
func (c *Config) AuthEnabled() bool {
	return c.WorkerAPIToken != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "MODEL_API_KEY") {
			return nil, ErrModelAPIKeyRequired
		}
		if strings.Contains(err.Error(), "S3_BUCKET") {
			return nil, ErrS3BucketRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.ModelAPIKey == "" {
		return ErrModelAPIKeyRequired
	}
	if c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Model: %s, Concurrency: %d, ChunkSeconds: %d, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Model,
		c.Concurrency,
		c.ChunkSeconds,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
