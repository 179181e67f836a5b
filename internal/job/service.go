package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/summarize-api/internal/audio"
	"github.com/maauso/summarize-api/internal/cluster"
	"github.com/maauso/summarize-api/internal/enhance"
	"github.com/maauso/summarize-api/internal/media"
	"github.com/maauso/summarize-api/internal/storage"
	"github.com/maauso/summarize-api/internal/summarize"
	"github.com/maauso/summarize-api/internal/textsplit"
	"github.com/maauso/summarize-api/internal/transcribe"
)

// DefaultLanguage is used for prompts when neither the caller nor the
// transcriber supplies a language.
const DefaultLanguage = "en"

var (
	// ErrEmptyInput is returned when the uploaded file has no content.
	ErrEmptyInput = errors.New("job: input file is empty")
	// ErrNotQueued is returned when processing a job that already ran.
	ErrNotQueued = errors.New("job: job is not queued")
	// ErrJobRunning is returned when deleting a job whose pipeline is active.
	ErrJobRunning = errors.New("job: job is running")
	// ErrJobDeleted is returned when a job is deleted while it is being processed.
	ErrJobDeleted = errors.New("job: job was deleted")
)

// Enhancer improves a WAV file before transcription.
type Enhancer interface {
	EnhanceFile(ctx context.Context, in, out string, aggressive bool) (*enhance.Result, error)
}

// Summarizer runs the text half of the pipeline.
type Summarizer interface {
	Chunk(transcript string, chunkSize int) ([]string, error)
	Cluster(ctx context.Context, chunks []string) ([]cluster.Cluster, error)
	Summarize(ctx context.Context, clusters []cluster.Cluster, language string) (*summarize.Summary, error)
}

var (
	_ Enhancer   = (*audio.FileEnhancer)(nil)
	_ Summarizer = (*summarize.Summarizer)(nil)
)

// CreateJobInput describes an upload to summarize.
type CreateJobInput struct {
	// Filename is the client's file name; its extension selects the route.
	Filename string
	Data     io.Reader
	Options  Options
}

// Report is the document uploaded when PushToS3 is set.
type Report struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Options  Options   `json:"options"`
	Result   Result    `json:"result"`
	Steps    []StepLog `json:"steps"`
}

// SummarizeService orchestrates a summarization run: media standardization,
// optional enhancement, transcription, optional correction, chunking,
// clustering, summarization and the optional report upload.
type SummarizeService struct {
	repo        Repository
	store       storage.Storage
	processor   media.Processor
	converter   audio.Converter
	enhancer    Enhancer
	transcriber transcribe.Transcriber
	corrector   *transcribe.Corrector
	summarizer  Summarizer
	logger      *slog.Logger

	sampleRate       int
	defaultChunkSize int
	timeout          time.Duration
}

// ServiceOption configures optional SummarizeService settings.
type ServiceOption func(*SummarizeService)

// WithEnhancer enables the audio enhancement step.
func WithEnhancer(e Enhancer) ServiceOption {
	return func(s *SummarizeService) {
		s.enhancer = e
	}
}

// WithCorrector enables the language correction step.
func WithCorrector(c *transcribe.Corrector) ServiceOption {
	return func(s *SummarizeService) {
		s.corrector = c
	}
}

// WithSampleRate sets the sample rate audio is standardized to.
func WithSampleRate(rate int) ServiceOption {
	return func(s *SummarizeService) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithDefaultChunkSize sets the chunk size used when a job does not specify one.
func WithDefaultChunkSize(n int) ServiceOption {
	return func(s *SummarizeService) {
		if n > 0 {
			s.defaultChunkSize = n
		}
	}
}

// WithJobTimeout bounds the duration of a single run. Zero disables the limit.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *SummarizeService) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// NewSummarizeService creates a SummarizeService.
func NewSummarizeService(
	repo Repository,
	store storage.Storage,
	processor media.Processor,
	converter audio.Converter,
	transcriber transcribe.Transcriber,
	summarizer Summarizer,
	logger *slog.Logger,
	opts ...ServiceOption,
) *SummarizeService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SummarizeService{
		repo:             repo,
		store:            store,
		processor:        processor,
		converter:        converter,
		transcriber:      transcriber,
		summarizer:       summarizer,
		logger:           logger,
		sampleRate:       audio.DefaultSampleRate,
		defaultChunkSize: textsplit.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob stores the upload and persists a new IN_QUEUE job.
// Unsupported extensions are rejected with audio.ErrUnsupportedFormat.
func (s *SummarizeService) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	if audio.Classify(input.Filename) == audio.KindUnknown {
		return nil, fmt.Errorf("%w: %q", audio.ErrUnsupportedFormat, filepath.Ext(input.Filename))
	}

	opts := input.Options
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = s.defaultChunkSize
	}
	opts.Language = transcribe.NormalizeLanguage(opts.Language)

	job := New()
	job.Filename = filepath.Base(input.Filename)
	job.Options = opts

	path, err := s.store.SaveTemp(ctx, job.Filename, input.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	job.InputPath = path

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("filename", job.Filename),
		slog.Bool("denoise", opts.Denoise),
		slog.Bool("aggressive_denoise", opts.AggressiveDenoise),
		slog.Int("chunk_size", opts.ChunkSize),
		slog.Bool("push_to_s3", opts.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		_ = s.store.CleanupTemp(context.WithoutCancel(ctx), []string{path})
		return nil, err
	}

	return job.Clone(), nil
}

// GetJob retrieves a job by ID.
func (s *SummarizeService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns every recorded run, newest first.
func (s *SummarizeService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob removes a job record together with any upload it still holds.
func (s *SummarizeService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.GetStatus() == StatusRunning {
		return fmt.Errorf("%w: %s", ErrJobRunning, id)
	}
	if job.InputPath != "" {
		if err := s.store.CleanupTemp(ctx, []string{job.InputPath}); err != nil {
			s.logger.Warn("failed to remove job input",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job deleted", slog.String("job_id", id))
	return nil
}

// Process creates a job from the input and runs it synchronously.
func (s *SummarizeService) Process(ctx context.Context, input CreateJobInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID)
}

// ProcessExistingJob runs the pipeline for a queued job. The returned job
// reflects the final state; a non-nil error means the run did not complete.
func (s *SummarizeService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.GetStatus() != StatusInQueue {
		return job, fmt.Errorf("%w: %s is %s", ErrNotQueued, jobID, job.GetStatus())
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	// Bookkeeping must survive cancellation of the run itself.
	bgCtx := context.WithoutCancel(ctx)

	if err := job.Start(); err != nil {
		return job, err
	}
	s.logStep(job, StepInitialization, StepInfo, "Starting audio/video processing pipeline", map[string]any{
		"input_file":         job.Filename,
		"denoise_enabled":    job.Options.Denoise,
		"aggressive_denoise": job.Options.AggressiveDenoise,
	})
	// The claim fails when DeleteJob removed the job after it was loaded.
	if err := s.checkpoint(bgCtx, job, 0); err != nil {
		s.logger.Info("job deleted before processing started", slog.String("job_id", job.ID))
		return nil, fmt.Errorf("process job %s: %w", job.ID, err)
	}

	start := time.Now()
	run := &pipelineRun{svc: s, job: job, scratch: []string{job.InputPath}}
	runErr := run.execute(ctx)
	s.cleanup(bgCtx, job, run.scratch)

	switch {
	case runErr == nil:
		s.logStep(job, StepPipelineComplete, StepSuccess, "Pipeline completed successfully", map[string]any{
			"elapsed_seconds": time.Since(start).Seconds(),
		})
		_ = job.Complete()
	case errors.Is(runErr, ErrJobDeleted):
		_ = job.Cancel(runErr.Error())
	case errors.Is(runErr, context.DeadlineExceeded):
		_ = job.Timeout(runErr.Error())
	case errors.Is(runErr, context.Canceled):
		_ = job.Cancel(runErr.Error())
	default:
		_ = job.Fail(runErr.Error())
	}
	if err := s.save(bgCtx, job); err != nil && runErr == nil {
		runErr = err
	}

	s.logger.Info("job finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.GetStatus())),
		slog.Duration("elapsed", time.Since(start)),
	)
	if runErr != nil {
		return job.Clone(), fmt.Errorf("process job %s: %w", job.ID, runErr)
	}
	return job.Clone(), nil
}

// logStep records a run log entry and mirrors it to the service logger.
func (s *SummarizeService) logStep(job *Job, step Step, status StepStatus, msg string, fields map[string]any) {
	job.LogStep(step, status, msg, fields)

	level := slog.LevelInfo
	switch status {
	case StepWarning:
		level = slog.LevelWarn
	case StepError:
		level = slog.LevelError
	}
	attrs := []any{
		slog.String("job_id", job.ID),
		slog.String("step", string(step)),
		slog.String("status", string(status)),
	}
	if len(fields) > 0 {
		attrs = append(attrs, slog.Any("fields", fields))
	}
	s.logger.Log(context.Background(), level, msg, attrs...)
}

// checkpoint updates progress and persists the job.
func (s *SummarizeService) checkpoint(ctx context.Context, job *Job, progress int) error {
	job.UpdateProgress(progress)
	return s.save(ctx, job)
}

// save persists the job even when ctx is cancelled. It only returns
// ErrJobDeleted; other persistence failures are logged and never abort a run.
func (s *SummarizeService) save(ctx context.Context, job *Job) error {
	err := s.repo.Update(context.WithoutCancel(ctx), job)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrJobNotFound):
		s.logger.Warn("job deleted during processing", slog.String("job_id", job.ID))
		return fmt.Errorf("%w: %s", ErrJobDeleted, job.ID)
	default:
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
}

func (s *SummarizeService) cleanup(ctx context.Context, job *Job, paths []string) {
	if err := s.store.CleanupTemp(ctx, paths); err != nil {
		s.logStep(job, StepCleanup, StepWarning, "Failed to remove temporary files", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.logStep(job, StepCleanup, StepInfo, "Temporary files removed", map[string]any{
		"paths": len(paths),
	})
}

// minSpeechRatio is the share of non-silent audio below which a run is
// flagged as probably empty.
const minSpeechRatio = 0.05

// pipelineRun carries the state of one execution.
type pipelineRun struct {
	svc     *SummarizeService
	job     *Job
	workDir string
	scratch []string
}

func (r *pipelineRun) execute(ctx context.Context) error {
	kind, err := r.validate()
	if err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 5); err != nil {
		return err
	}

	workDir, err := r.svc.store.WorkDir(ctx, r.job.ID)
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	r.workDir = workDir
	r.scratch = append(r.scratch, workDir)

	audioPath, err := r.convert(ctx, kind)
	if err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 20); err != nil {
		return err
	}

	audioPath, err = r.enhance(ctx, audioPath)
	if err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 35); err != nil {
		return err
	}

	transcript, language, err := r.transcribe(ctx, audioPath)
	if err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 55); err != nil {
		return err
	}

	transcript = r.correct(ctx, transcript, language)
	if err := r.svc.checkpoint(ctx, r.job, 65); err != nil {
		return err
	}

	chunks, err := r.chunk(transcript)
	if err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 70); err != nil {
		return err
	}

	clusters := r.cluster(ctx, chunks)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 80); err != nil {
		return err
	}

	if err := r.summarize(ctx, clusters, language); err != nil {
		return err
	}
	if err := r.svc.checkpoint(ctx, r.job, 95); err != nil {
		return err
	}

	r.uploadReport(ctx)
	return nil
}

func (r *pipelineRun) validate() (audio.Kind, error) {
	ext := strings.ToLower(filepath.Ext(r.job.Filename))
	kind := audio.Classify(r.job.Filename)
	if kind == audio.KindUnknown {
		r.svc.logStep(r.job, StepFileValidation, StepError, fmt.Sprintf("Unsupported file type: '%s'", ext), nil)
		return kind, fmt.Errorf("%w: %q", audio.ErrUnsupportedFormat, ext)
	}

	info, err := os.Stat(r.job.InputPath)
	if err != nil {
		r.svc.logStep(r.job, StepFileValidation, StepError, "Input file not found", nil)
		return kind, fmt.Errorf("%w: %w", media.ErrInputNotFound, err)
	}
	if info.Size() == 0 {
		r.svc.logStep(r.job, StepFileValidation, StepError, "Input file is empty", nil)
		return kind, ErrEmptyInput
	}

	r.svc.logStep(r.job, StepFileValidation, StepSuccess, "Input file validated", map[string]any{
		"file_type":  ext,
		"kind":       kind.String(),
		"size_bytes": info.Size(),
	})
	return kind, nil
}

// convert produces the mono PCM WAV the rest of the pipeline works on.
func (r *pipelineRun) convert(ctx context.Context, kind audio.Kind) (string, error) {
	src := r.job.InputPath
	rate := r.svc.sampleRate
	audioPath := src

	switch {
	case kind == audio.KindVideo:
		dst := filepath.Join(r.workDir, "audio.wav")
		if err := r.svc.processor.ExtractAudio(ctx, src, dst, rate); err != nil {
			r.svc.logStep(r.job, StepAudioConversion, StepError, "Video conversion failed", map[string]any{"error": err.Error()})
			return "", fmt.Errorf("extract audio: %w", err)
		}
		audioPath = dst
		r.svc.logStep(r.job, StepAudioConversion, StepSuccess, "Video converted to audio", map[string]any{"sample_rate": rate})

	case !audio.IsWAV(src) || r.job.Options.ForceWAV:
		dst := filepath.Join(r.workDir, "standardized.wav")
		if err := r.svc.converter.Standardize(ctx, src, dst, rate); err != nil {
			if ctx.Err() != nil || !audio.IsWAV(src) {
				r.svc.logStep(r.job, StepAudioConversion, StepError, "Audio format conversion failed", map[string]any{"error": err.Error()})
				return "", fmt.Errorf("standardize audio: %w", err)
			}
			r.svc.logStep(r.job, StepAudioConversion, StepWarning, "Audio format conversion failed. Using original file.", map[string]any{"error": err.Error()})
			break
		}
		audioPath = dst
		r.svc.logStep(r.job, StepAudioConversion, StepSuccess, "Audio format standardized", map[string]any{"sample_rate": rate})

	default:
		r.svc.logStep(r.job, StepAudioConversion, StepInfo, "Using WAV file directly", nil)
	}

	d, err := r.svc.converter.Duration(ctx, audioPath)
	if err != nil {
		r.svc.logger.Debug("duration lookup failed", slog.String("job_id", r.job.ID), slog.String("error", err.Error()))
		return audioPath, nil
	}
	r.svc.logStep(r.job, StepAudioConversion, StepInfo, "Audio duration measured", map[string]any{"duration_seconds": d})
	r.measureSilence(ctx, audioPath, d)
	return audioPath, nil
}

// measureSilence records how much of the audio is silent and warns when the
// recording is almost entirely silence.
func (r *pipelineRun) measureSilence(ctx context.Context, audioPath string, duration float64) {
	if duration <= 0 {
		return
	}
	intervals, err := r.svc.converter.Silences(ctx, audioPath, audio.DefaultSilenceOpts())
	if err != nil {
		r.svc.logger.Debug("silence detection failed", slog.String("job_id", r.job.ID), slog.String("error", err.Error()))
		return
	}
	silent := min(audio.TotalSilence(intervals), duration)
	speechRatio := 1 - silent/duration
	fields := map[string]any{
		"silence_seconds": silent,
		"speech_ratio":    speechRatio,
	}
	if speechRatio < minSpeechRatio {
		r.svc.logStep(r.job, StepAudioConversion, StepWarning, "Audio is almost entirely silent", fields)
		return
	}
	r.svc.logStep(r.job, StepAudioConversion, StepInfo, "Silence measured", fields)
}

// enhance runs the adaptive enhancer when requested. An enhancement failure
// falls back to the un-enhanced audio.
func (r *pipelineRun) enhance(ctx context.Context, audioPath string) (string, error) {
	opts := r.job.Options
	if !opts.Denoise && !opts.AggressiveDenoise {
		r.svc.logStep(r.job, StepAudioEnhancement, StepInfo, "Audio enhancement skipped by user choice", nil)
		return audioPath, nil
	}
	if r.svc.enhancer == nil {
		r.svc.logStep(r.job, StepAudioEnhancement, StepWarning, "Audio enhancement unavailable. Proceeding with original audio.", nil)
		return audioPath, nil
	}

	r.svc.logStep(r.job, StepAudioEnhancement, StepInfo, "Starting audio enhancement", map[string]any{
		"aggressive_mode": opts.AggressiveDenoise,
	})

	enhancedPath := audio.EnhancedPath(r.workDir, audioPath)
	res, err := r.svc.enhancer.EnhanceFile(ctx, audioPath, enhancedPath, opts.AggressiveDenoise)
	if err != nil {
		if !errors.Is(err, enhance.ErrEnhancement) {
			r.svc.logStep(r.job, StepAudioEnhancement, StepError, "Audio enhancement aborted", map[string]any{"error": err.Error()})
			return "", fmt.Errorf("enhance audio: %w", err)
		}
		r.svc.logStep(r.job, StepAudioEnhancement, StepWarning, "Audio enhancement failed. Proceeding with original audio.", map[string]any{"error": err.Error()})
		return audioPath, nil
	}

	stages := make([]string, len(res.Stages))
	for i, st := range res.Stages {
		stages[i] = st.String()
	}
	r.job.UpdateResult(func(out *Result) {
		out.Enhancement = &Enhancement{Tier: string(res.Tier), Stages: stages}
	})
	r.svc.logStep(r.job, StepAudioEnhancement, StepSuccess, "Audio enhancement completed", map[string]any{
		"tier":   string(res.Tier),
		"stages": stages,
	})
	return enhancedPath, nil
}

func (r *pipelineRun) transcribe(ctx context.Context, audioPath string) (string, string, error) {
	hint := r.job.Options.Language
	r.svc.logStep(r.job, StepTranscription, StepInfo, "Starting transcription", map[string]any{"language_hint": hint})

	tr, err := r.svc.transcriber.Transcribe(ctx, audioPath, hint)
	if err != nil {
		r.svc.logStep(r.job, StepTranscription, StepError, "Transcription failed", map[string]any{"error": err.Error()})
		return "", "", fmt.Errorf("transcribe: %w", err)
	}

	language := tr.Language
	if language == "" {
		language = hint
	}
	if language == "" {
		language = DefaultLanguage
	}

	r.job.UpdateResult(func(out *Result) {
		out.Transcript = tr.Text
		out.Language = language
	})
	r.svc.logStep(r.job, StepTranscription, StepSuccess, "Transcription completed", map[string]any{
		"detected_language":       language,
		"transcript_length_chars": len([]rune(tr.Text)),
	})
	return tr.Text, language, nil
}

// correct applies the optional grammar correction. It never fails the run.
func (r *pipelineRun) correct(ctx context.Context, transcript, language string) string {
	if !r.job.Options.CorrectLanguage {
		return transcript
	}
	if r.svc.corrector == nil {
		r.svc.logStep(r.job, StepLanguageCorrection, StepWarning, "Language correction unavailable", nil)
		return transcript
	}

	corrected, changed := r.svc.corrector.Correct(ctx, transcript, language)
	if !changed {
		r.svc.logStep(r.job, StepLanguageCorrection, StepWarning, "Language correction failed. Keeping raw transcript.", nil)
		return transcript
	}

	r.job.UpdateResult(func(out *Result) {
		out.RawTranscript = transcript
		out.Transcript = corrected
	})
	r.svc.logStep(r.job, StepLanguageCorrection, StepSuccess, "Transcript corrected", map[string]any{
		"language": language,
	})
	return corrected
}

func (r *pipelineRun) chunk(transcript string) ([]string, error) {
	size := r.job.Options.ChunkSize
	chunks, err := r.svc.summarizer.Chunk(transcript, size)
	if err != nil {
		r.svc.logStep(r.job, StepTextChunking, StepError, "Text chunking failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("chunk transcript: %w", err)
	}

	r.job.UpdateResult(func(out *Result) {
		out.Chunks = chunks
	})
	r.svc.logStep(r.job, StepTextChunking, StepSuccess, "Text split into chunks", map[string]any{
		"num_chunks": len(chunks),
		"chunk_size": size,
	})
	return chunks, nil
}

// cluster groups chunks by topic, falling back to a single topic.
func (r *pipelineRun) cluster(ctx context.Context, chunks []string) []cluster.Cluster {
	var clusters []cluster.Cluster
	if len(chunks) <= 1 {
		clusters = cluster.Group(chunks, nil)
		r.svc.logStep(r.job, StepClustering, StepInfo, "Single chunk - no clustering needed", nil)
	} else {
		r.svc.logStep(r.job, StepClustering, StepInfo, "Clustering chunks by topic", nil)
		var err error
		clusters, err = r.svc.summarizer.Cluster(ctx, chunks)
		if err != nil {
			clusters = cluster.Group(chunks, nil)
			r.svc.logStep(r.job, StepClustering, StepWarning, "Clustering failed. Summarizing as one topic.", map[string]any{"error": err.Error()})
		} else {
			r.svc.logStep(r.job, StepClustering, StepSuccess, "Topic clustering completed", map[string]any{"num_clusters": len(clusters)})
		}
	}

	r.job.UpdateResult(func(out *Result) {
		out.Clusters = len(clusters)
	})
	return clusters
}

func (r *pipelineRun) summarize(ctx context.Context, clusters []cluster.Cluster, language string) error {
	r.svc.logStep(r.job, StepSummarization, StepInfo, "Generating comprehensive summary", nil)

	sum, err := r.svc.summarizer.Summarize(ctx, clusters, language)
	if err != nil {
		r.svc.logStep(r.job, StepSummarization, StepError, "Summarization aborted", map[string]any{"error": err.Error()})
		return fmt.Errorf("summarize: %w", err)
	}

	r.job.UpdateResult(func(out *Result) {
		out.ClusterSummaries = sum.ClusterSummaries
		out.Summary = sum.FinalSummary
		out.SummaryError = sum.FinalError
	})

	if sum.FinalError != "" {
		r.svc.logStep(r.job, StepSummarization, StepWarning, "Final summary could not be generated", map[string]any{
			"error":             sum.FinalError,
			"cluster_summaries": len(sum.ClusterSummaries),
		})
		return nil
	}
	r.svc.logStep(r.job, StepSummarization, StepSuccess, "Final summary generated", map[string]any{
		"summary_length_chars": len([]rune(sum.FinalSummary)),
		"cluster_summaries":    len(sum.ClusterSummaries),
	})
	return nil
}

// uploadReport publishes the run report. Upload failures are recorded as
// warnings; the summary is already available on the job.
func (r *pipelineRun) uploadReport(ctx context.Context) {
	if !r.job.Options.PushToS3 {
		return
	}

	snapshot := r.job.Clone()
	data, err := json.MarshalIndent(Report{
		ID:       snapshot.ID,
		Filename: snapshot.Filename,
		Options:  snapshot.Options,
		Result:   snapshot.Result,
		Steps:    snapshot.Steps,
	}, "", "  ")
	if err != nil {
		r.svc.logStep(r.job, StepReportUpload, StepWarning, "Failed to encode report", map[string]any{"error": err.Error()})
		return
	}

	key := "reports/" + r.job.ID + ".json"
	url, err := r.svc.store.UploadToS3(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		r.svc.logStep(r.job, StepReportUpload, StepWarning, "Report upload failed", map[string]any{"error": err.Error()})
		return
	}

	r.job.UpdateResult(func(out *Result) {
		out.ReportURL = url
	})
	r.svc.logStep(r.job, StepReportUpload, StepSuccess, "Report uploaded", map[string]any{"url": url})
}
