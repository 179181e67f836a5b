package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/summarize-api/internal/audio"
	"github.com/maauso/summarize-api/internal/job"
	"github.com/maauso/summarize-api/internal/job/id"
)

// DefaultMaxUploadBytes bounds a multipart upload when no limit is configured.
const DefaultMaxUploadBytes = 512 << 20

// multipartMemory is how much of a form is buffered in memory before
// spilling to disk.
const multipartMemory = 32 << 20

var errInvalidField = errors.New("invalid form field")

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.SummarizeService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	maxUploadBytes     int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxUploadBytes limits the request body of POST /jobs.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.SummarizeService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
		maxUploadBytes:     DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs multipart uploads.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", "MISSING_FILE")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	req, err := parseCreateJobForm(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FORM")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	createdJob, err := h.service.CreateJob(r.Context(), job.CreateJobInput{
		Filename: header.Filename,
		Data:     file,
		Options:  req.options(),
	})
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, err.Error(), "UNSUPPORTED_FORMAT")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("filename", createdJob.Filename),
		slog.Int64("size", header.Size),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// parseCreateJobForm maps the multipart value fields onto a CreateJobRequest.
func parseCreateJobForm(form *multipart.Form) (CreateJobRequest, error) {
	var req CreateJobRequest
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"denoise", &req.Denoise},
		{"aggressive_denoise", &req.AggressiveDenoise},
		{"force_wav", &req.ForceWAV},
		{"correct_language", &req.CorrectLanguage},
		{"push_to_s3", &req.PushToS3},
	}
	for _, b := range bools {
		raw := value(b.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("%w: %s must be a boolean", errInvalidField, b.key)
		}
		*b.dst = v
	}

	if raw := value("chunk_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: chunk_size must be an integer", errInvalidField)
		}
		req.ChunkSize = n
	}
	req.Language = value("language")
	return req, nil
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err, "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := JobListResponse{Jobs: make([]JobListItem, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, JobListItem{
			ID:        j.ID,
			Status:    string(j.Status),
			Progress:  j.Progress,
			Filename:  j.Filename,
			CreatedAt: j.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobRunning) {
			writeError(w, http.StatusConflict, "job is still running", "JOB_RUNNING")
			return
		}
		h.writeLookupError(w, jobID, err, "JOB_DELETE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// jobID extracts and checks the {id} path value, writing the error response
// itself when the value is unusable.
func (h *Handlers) jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return "", false
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "malformed job ID", "INVALID_JOB_ID")
		return "", false
	}
	return jobID, true
}

func (h *Handlers) writeLookupError(w http.ResponseWriter, jobID string, err error, code string) {
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}
	h.logger.Error("job lookup failed",
		slog.String("job_id", jobID),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal error", code)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
