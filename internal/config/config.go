// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConfig is returned when a value fails validation.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrOpenAIAPIKeyRequired is returned when an OpenAI-backed provider is selected without OPENAI_API_KEY.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrGoogleAPIKeyRequired is returned when GENERATOR=gemini and GOOGLE_API_KEY is not set.
	ErrGoogleAPIKeyRequired = errors.New("config: GOOGLE_API_KEY is required")
	// ErrASRURLRequired is returned when TRANSCRIBER=asr and ASR_URL is not set.
	ErrASRURLRequired = errors.New("config: ASR_URL is required")
	// ErrSenopatiURLRequired is returned when GENERATOR=senopati and SENOPATI_URL is empty.
	ErrSenopatiURLRequired = errors.New("config: SENOPATI_URL is required")
)

// Provider names accepted by TRANSCRIBER, GENERATOR and EMBEDDER.
const (
	ProviderOpenAI   = "openai"
	ProviderASR      = "asr"
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderSenopati = "senopati"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`
	MaxUploadMB int `env:"MAX_UPLOAD_MB, default=512" json:"max_upload_mb" validate:"min=1"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/summarize" json:"temp_dir" validate:"required"`
	DBPath  string `env:"DB_PATH" json:"db_path,omitempty"` // empty keeps jobs in memory

	MaxRetainedJobs int `env:"MAX_RETAINED_JOBS, default=500" json:"max_retained_jobs" validate:"min=0"` // in-memory only; 0 keeps all

	// Audio settings
	TargetSampleRate int  `env:"TARGET_SAMPLE_RATE, default=16000" json:"target_sample_rate" validate:"min=8000,max=48000"`
	EnhanceWorkers   int  `env:"ENHANCE_WORKERS, default=0" json:"enhance_workers" validate:"min=0"` // 0 = CPUs minus one
	EnhanceParallel  bool `env:"ENHANCE_PARALLEL, default=true" json:"enhance_parallel"`

	// Transcription settings
	Transcriber   string `env:"TRANSCRIBER, default=openai" json:"transcriber" validate:"oneof=openai asr"`
	ASRURL        string `env:"ASR_URL" json:"asr_url,omitempty" validate:"omitempty,url"`
	ASRToken      string `env:"ASR_TOKEN" json:"-"`      // Masked in JSON
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty" validate:"omitempty,url"`

	// Generation settings
	Generator      string `env:"GENERATOR, default=gemini" json:"generator" validate:"oneof=gemini openai ollama senopati"`
	GeneratorModel string `env:"GENERATOR_MODEL" json:"generator_model,omitempty"`
	GoogleAPIKey   string `env:"GOOGLE_API_KEY" json:"-"` // Masked in JSON
	SenopatiURL    string `env:"SENOPATI_URL, default=https://senopati.its.ac.id/senopati-lokal-dev/generate" json:"senopati_url" validate:"omitempty,url"`
	SenopatiAPIKey string `env:"SENOPATI_API_KEY" json:"-"` // Masked in JSON
	OllamaHost     string `env:"OLLAMA_HOST, default=http://localhost:11434" json:"ollama_host" validate:"omitempty,url"`

	// Embedding settings
	Embedder       string `env:"EMBEDDER, default=openai" json:"embedder" validate:"oneof=openai ollama"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" json:"embedding_model,omitempty"`

	// Processing settings
	ChunkSize              int           `env:"CHUNK_SIZE, default=2000" json:"chunk_size" validate:"min=100,max=20000"`
	ChunkOverlap           int           `env:"CHUNK_OVERLAP, default=150" json:"chunk_overlap" validate:"min=0"`
	MaxConcurrentSummaries int           `env:"MAX_CONCURRENT_SUMMARIES, default=3" json:"max_concurrent_summaries" validate:"min=1,max=32"`
	JobTimeout             time.Duration `env:"JOB_TIMEOUT, default=0s" json:"job_timeout"` // 0 disables the deadline

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadWithLookuper(context.Background(), envconfig.OsLookuper())
}

// LoadWithLookuper is Load with an explicit variable source.
func LoadWithLookuper(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and that the selected providers have what
// they need.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	needsOpenAI := c.Transcriber == ProviderOpenAI ||
		c.Generator == ProviderOpenAI ||
		c.Embedder == ProviderOpenAI
	if needsOpenAI && c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
		return ErrOpenAIAPIKeyRequired
	}
	if c.Transcriber == ProviderASR && c.ASRURL == "" {
		return ErrASRURLRequired
	}
	if c.Generator == ProviderGemini && c.GoogleAPIKey == "" {
		return ErrGoogleAPIKeyRequired
	}
	if c.Generator == ProviderSenopati && c.SenopatiURL == "" {
		return ErrSenopatiURLRequired
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("%w: JOB_TIMEOUT must not be negative", ErrInvalidConfig)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
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
		"Config{Port: %d, TempDir: %s, DBPath: %s, Transcriber: %s, Generator: %s, GeneratorModel: %s, Embedder: %s, "+
			"ChunkSize: %d, ChunkOverlap: %d, MaxConcurrentSummaries: %d, TargetSampleRate: %d, "+
			"OpenAIAPIKey: %s, GoogleAPIKey: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.DBPath,
		c.Transcriber,
		c.Generator,
		c.GeneratorModel,
		c.Embedder,
		c.ChunkSize,
		c.ChunkOverlap,
		c.MaxConcurrentSummaries,
		c.TargetSampleRate,
		mask(c.OpenAIAPIKey),
		mask(c.GoogleAPIKey),
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
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
