// Package server provides the HTTP server for the summarization API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/summarize-api/internal/job"
)

// CreateJobRequest holds the form fields sent next to the uploaded file.
type CreateJobRequest struct {
	// Denoise enables adaptive audio enhancement.
	Denoise bool `form:"denoise"`
	// AggressiveDenoise forces the strongest enhancement tier.
	AggressiveDenoise bool `form:"aggressive_denoise"`
	// ForceWAV standardizes WAV uploads as well.
	ForceWAV bool `form:"force_wav"`
	// ChunkSize is the target chunk length in characters. Zero uses the server default.
	ChunkSize int `form:"chunk_size" validate:"omitempty,min=100,max=20000"`
	// Language is an optional ISO 639-1 hint; blank means auto-detect.
	Language string `form:"language" validate:"omitempty,max=16,printascii"`
	// CorrectLanguage runs the LLM transcript correction pass.
	CorrectLanguage bool `form:"correct_language"`
	// PushToS3 uploads the JSON report to S3.
	PushToS3 bool `form:"push_to_s3"`
}

func (r CreateJobRequest) options() job.Options {
	return job.Options{
		Denoise:           r.Denoise,
		AggressiveDenoise: r.AggressiveDenoise,
		ForceWAV:          r.ForceWAV,
		ChunkSize:         r.ChunkSize,
		Language:          r.Language,
		CorrectLanguage:   r.CorrectLanguage,
		PushToS3:          r.PushToS3,
	}
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID       string      `json:"id"`
	Status   string      `json:"status"`
	Progress int         `json:"progress"`
	Error    string      `json:"error,omitempty"`
	Filename string      `json:"filename"`
	Options  job.Options `json:"options"`
	// Result is present once the pipeline produced output.
	Result *job.Result `json:"result,omitempty"`

	Steps       []job.StepLog `json:"steps"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// JobListItem is one entry of GET /jobs.
type JobListItem struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobListItem `json:"jobs"`
}

func newJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		Error:     j.Error,
		Filename:  j.Filename,
		Options:   j.Options,
		Steps:     j.Steps,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if resp.Steps == nil {
		resp.Steps = []job.StepLog{}
	}
	if j.Status == job.StatusCompleted || j.Result.Transcript != "" {
		result := j.Result
		resp.Result = &result
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
