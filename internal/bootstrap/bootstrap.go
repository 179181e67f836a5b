// Package bootstrap provides dependency initialization for the summarization API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/summarize-api/internal/asr"
	"github.com/maauso/summarize-api/internal/audio"
	"github.com/maauso/summarize-api/internal/config"
	"github.com/maauso/summarize-api/internal/embedding"
	"github.com/maauso/summarize-api/internal/enhance"
	"github.com/maauso/summarize-api/internal/generator"
	"github.com/maauso/summarize-api/internal/job"
	"github.com/maauso/summarize-api/internal/media"
	"github.com/maauso/summarize-api/internal/senopati"
	"github.com/maauso/summarize-api/internal/storage"
	"github.com/maauso/summarize-api/internal/summarize"
	"github.com/maauso/summarize-api/internal/transcribe"
)

// Dependencies holds all initialized dependencies for the server and CLI.
type Dependencies struct {
	Service    *job.SummarizeService
	Enhancer   *audio.FileEnhancer
	Summarizer *summarize.Summarizer
	Generator  generator.Generator

	closers []io.Closer
}

// Close releases provider clients and the job database.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Dependencies, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	deps := &Dependencies{}
	defer func() {
		if err != nil {
			_ = deps.Close()
		}
	}()

	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, err := initRepository(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	gen, err := initGenerator(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}
	deps.Generator = gen

	embedder, err := initEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	transcriber, err := initTranscriber(cfg, logger)
	if err != nil {
		return nil, err
	}

	sum, err := summarize.New(gen, embedder, logger,
		summarize.WithMaxConcurrent(cfg.MaxConcurrentSummaries),
		summarize.WithChunkOverlap(cfg.ChunkOverlap),
	)
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}
	deps.Summarizer = sum

	enhancer := enhance.NewEnhancer(logger,
		enhance.WithWorkers(cfg.EnhanceWorkers),
		enhance.WithParallel(cfg.EnhanceParallel),
	)
	deps.Enhancer = audio.NewFileEnhancer(enhancer, logger)

	deps.Service = job.NewSummarizeService(
		repo,
		store,
		media.NewFFmpegProcessor(""),
		audio.NewFFmpegConverter(""),
		transcriber,
		sum,
		logger,
		job.WithEnhancer(deps.Enhancer),
		job.WithCorrector(transcribe.NewCorrector(gen, logger)),
		job.WithSampleRate(cfg.TargetSampleRate),
		job.WithDefaultChunkSize(cfg.ChunkSize),
		job.WithJobTimeout(cfg.JobTimeout),
	)

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

func initRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (job.Repository, error) {
	if cfg.DBPath == "" {
		logger.Info("job repository configured",
			slog.String("backend", "memory"),
			slog.Int("max_retained", cfg.MaxRetainedJobs),
		)
		return job.NewMemoryRepository(job.WithMaxRetained(cfg.MaxRetainedJobs)), nil
	}
	repo, err := job.OpenSQLiteRepository(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	deps.closers = append(deps.closers, repo)
	logger.Info("job repository configured",
		slog.String("backend", "sqlite"),
		slog.String("path", cfg.DBPath),
	)
	return repo, nil
}

func initGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (generator.Generator, error) {
	var (
		gen generator.Generator
		err error
	)
	switch cfg.Generator {
	case config.ProviderGemini:
		var g *generator.GeminiAdapter
		g, err = generator.NewGeminiAdapter(ctx, cfg.GoogleAPIKey, cfg.GeneratorModel)
		if err == nil {
			deps.closers = append(deps.closers, g)
			gen = g
		}
	case config.ProviderOpenAI:
		gen, err = generator.NewOpenAIAdapter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.GeneratorModel)
	case config.ProviderOllama:
		gen, err = generator.NewOllamaAdapter(cfg.OllamaHost, cfg.GeneratorModel, nil)
	case config.ProviderSenopati:
		var client *senopati.HTTPClient
		client, err = senopati.NewClient(cfg.SenopatiURL, senopati.WithAPIKey(cfg.SenopatiAPIKey))
		if err == nil {
			gen = generator.NewSenopatiAdapter(client)
		}
	default:
		err = fmt.Errorf("unknown generator %q", cfg.Generator)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", cfg.Generator, err)
	}

	logger.Info("generator configured",
		slog.String("provider", cfg.Generator),
		slog.String("model", cfg.GeneratorModel),
	)
	return gen, nil
}

func initEmbedder(cfg *config.Config, logger *slog.Logger) (embedding.Embedder, error) {
	var (
		emb embedding.Embedder
		err error
	)
	switch cfg.Embedder {
	case config.ProviderOpenAI:
		emb, err = embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	case config.ProviderOllama:
		emb, err = embedding.NewOllamaEmbedder(cfg.OllamaHost, cfg.EmbeddingModel, nil)
	default:
		err = fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Embedder, err)
	}

	logger.Info("embedder configured",
		slog.String("provider", cfg.Embedder),
		slog.String("model", cfg.EmbeddingModel),
	)
	return emb, nil
}

func initTranscriber(cfg *config.Config, logger *slog.Logger) (transcribe.Transcriber, error) {
	switch cfg.Transcriber {
	case config.ProviderASR:
		opts := []asr.ClientOption{}
		if cfg.ASRToken != "" {
			opts = append(opts, asr.WithToken(cfg.ASRToken))
		}
		client, err := asr.NewClient(cfg.ASRURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create ASR client: %w", err)
		}
		logger.Info("transcriber configured",
			slog.String("provider", cfg.Transcriber),
			slog.String("url", cfg.ASRURL),
		)
		return transcribe.NewASRAdapter(client), nil
	case config.ProviderOpenAI:
		logger.Info("transcriber configured", slog.String("provider", cfg.Transcriber))
		return transcribe.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
	}
}
