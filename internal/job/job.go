// Package job provides the Job aggregate for summarization runs: the state
// machine, the per-step run log and the pipeline result, as well as the
// repository interfaces used to persist them.
package job

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/maauso/summarize-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the pipeline is running.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates a pipeline step failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the run exceeded its deadline.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Step names a pipeline stage in the run log.
type Step string

const (
	StepInitialization     Step = "INITIALIZATION"
	StepFileValidation     Step = "FILE_VALIDATION"
	StepAudioConversion    Step = "AUDIO_CONVERSION"
	StepAudioEnhancement   Step = "AUDIO_ENHANCEMENT"
	StepTranscription      Step = "TRANSCRIPTION"
	StepLanguageCorrection Step = "LANGUAGE_CORRECTION"
	StepTextChunking       Step = "TEXT_CHUNKING"
	StepClustering         Step = "CLUSTERING"
	StepSummarization      Step = "SUMMARIZATION"
	StepReportUpload       Step = "REPORT_UPLOAD"
	StepCleanup            Step = "CLEANUP"
	StepPipelineComplete   Step = "PIPELINE_COMPLETE"
)

// StepStatus is the outcome recorded for a step.
type StepStatus string

const (
	StepInfo    StepStatus = "INFO"
	StepSuccess StepStatus = "SUCCESS"
	StepWarning StepStatus = "WARNING"
	StepError   StepStatus = "ERROR"
)

// StepLog is one entry of a job's run log.
type StepLog struct {
	Step    Step           `json:"step"`
	Status  StepStatus     `json:"status"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
	At      time.Time      `json:"at"`
}

// Options are the per-run switches supplied with the upload.
type Options struct {
	Denoise           bool   `json:"denoise"`
	AggressiveDenoise bool   `json:"aggressive_denoise"`
	ForceWAV          bool   `json:"force_wav"`
	ChunkSize         int    `json:"chunk_size"`
	Language          string `json:"language,omitempty"`
	CorrectLanguage   bool   `json:"correct_language"`
	PushToS3          bool   `json:"push_to_s3"`
}

// Enhancement summarizes what the audio enhancement step did.
type Enhancement struct {
	Tier   string   `json:"tier"`
	Stages []string `json:"stages"`
}

// Result holds the pipeline output.
type Result struct {
	Transcript       string       `json:"transcript"`
	RawTranscript    string       `json:"raw_transcript,omitempty"`
	Language         string       `json:"language"`
	Chunks           []string     `json:"chunks,omitempty"`
	Clusters         int          `json:"clusters"`
	ClusterSummaries []string     `json:"cluster_summaries,omitempty"`
	Summary          string       `json:"summary"`
	SummaryError     string       `json:"summary_error,omitempty"`
	Enhancement      *Enhancement `json:"enhancement,omitempty"`
	ReportURL        string       `json:"report_url,omitempty"`
}

func (r Result) clone() Result {
	out := r
	out.Chunks = slices.Clone(r.Chunks)
	out.ClusterSummaries = slices.Clone(r.ClusterSummaries)
	if r.Enhancement != nil {
		e := *r.Enhancement
		e.Stages = slices.Clone(r.Enhancement.Stages)
		out.Enhancement = &e
	}
	return out
}

// Job is a summarization run.
type Job struct {
	mu sync.RWMutex

	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	Progress int     `json:"progress"`
	Error    string  `json:"error,omitempty"`
	Filename string  `json:"filename"`
	Options  Options `json:"options"`
	// InputPath is the uploaded file in temporary storage.
	InputPath   string    `json:"input_path,omitempty"`
	Steps       []StepLog `json:"steps"`
	Result      Result    `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Steps:     make([]StepLog, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
		if status == StatusCompleted {
			j.Progress = 100
		}
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	return j.finish(StatusFailed, errMsg)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel(reason string) error {
	return j.finish(StatusCancelled, reason)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout(reason string) error {
	return j.finish(StatusTimedOut, reason)
}

func (j *Job) finish(status Status, errMsg string) error {
	if err := j.TransitionTo(status); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = max(0, min(progress, 100))
	j.UpdatedAt = time.Now()
}

// LogStep appends an entry to the run log.
func (j *Job) LogStep(step Step, status StepStatus, message string, fields map[string]any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.UpdatedAt = time.Now()
	j.Steps = append(j.Steps, StepLog{
		Step:    step,
		Status:  status,
		Message: message,
		Fields:  fields,
		At:      j.UpdatedAt,
	})
}

// UpdateResult applies fn to the job result under the job lock.
func (j *Job) UpdateResult(fn func(*Result)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.Result)
	j.UpdatedAt = time.Now()
}

// GetResult returns a copy of the job result.
func (j *Job) GetResult() Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Result.clone()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	steps := make([]StepLog, len(j.Steps))
	for i, s := range j.Steps {
		s.Fields = maps.Clone(s.Fields)
		steps[i] = s
	}

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		Filename:    j.Filename,
		Options:     j.Options,
		InputPath:   j.InputPath,
		Steps:       steps,
		Result:      j.Result.clone(),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
